package sync

import "time"

// Mode identifies a reconciliation mode.
type Mode string

const (
	// ModeInit is the destructive bootstrap import: local mirror becomes
	// exactly the deduplicated remote set.
	ModeInit Mode = "init"
	// ModeDiff is the non-destructive incremental two-way merge.
	ModeDiff Mode = "diff"
	// ModeFullUpdate is the authoritative local-to-remote push.
	ModeFullUpdate Mode = "full-update"
)

// ParseMode validates a raw mode string at the boundary.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeInit, ModeDiff, ModeFullUpdate:
		return Mode(raw), true
	default:
		return "", false
	}
}

// RecordError is a record-level failure collected during a run.
// Individual-record failures never abort the overall run.
type RecordError struct {
	// NaturalKey identifies the failed record.
	NaturalKey string `json:"natural_key"`
	// RemoteID is set when the failure concerns a known remote record.
	RemoteID string `json:"remote_id,omitempty"`
	// Op names the operation that failed (convert, upsert, create, update, delete).
	Op string `json:"op"`
	// Message is the human-readable failure description.
	Message string `json:"message"`
}

// Warning codes surfaced on run results.
const (
	// WarnRemoteIDConflict is recorded when the global uniqueness precheck
	// rejected a RemoteID assignment. The run continues with the field unset.
	WarnRemoteIDConflict = "remote_id_conflict"
)

// Warning is a non-fatal condition recorded during a run.
type Warning struct {
	Code       string `json:"code"`
	NaturalKey string `json:"natural_key,omitempty"`
	Message    string `json:"message"`
}

// SyncResult is the outcome of an InitSync or DiffSync run.
// It is always returned as a structured object, even on partial failure.
type SyncResult struct {
	Partition string `json:"partition"`
	Mode      Mode   `json:"mode"`

	// RemoteTotal is the number of raw remote records seen.
	RemoteTotal int `json:"remote_total"`
	// Deduplicated is the number of canonical remote records after dedup.
	Deduplicated int `json:"deduplicated"`

	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// Deleted counts local records pruned (InitSync only).
	Deleted int `json:"deleted"`
	// PendingMarked counts local-only records flagged for later push (DiffSync only).
	PendingMarked int `json:"pending_marked"`
	// PendingKept counts records whose local edits were preserved over a
	// conflicting remote change (DiffSync only).
	PendingKept int `json:"pending_kept"`

	Errors   []RecordError `json:"errors"`
	Warnings []Warning     `json:"warnings"`

	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`

	// Success is true only if the error list is empty.
	Success bool `json:"success"`
}

func newSyncResult(partition string, mode Mode) *SyncResult {
	return &SyncResult{
		Partition: partition,
		Mode:      mode,
		Errors:    []RecordError{},
		Warnings:  []Warning{},
		StartedAt: time.Now(),
	}
}

func (r *SyncResult) finish() *SyncResult {
	r.Duration = time.Since(r.StartedAt).String()
	r.Success = len(r.Errors) == 0
	return r
}

// PushResult is the outcome of a FullUpdate run.
type PushResult struct {
	Partition string `json:"partition"`
	// Total is the number of local records considered.
	Total int `json:"total"`

	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// Pruned counts remote records deleted because no local counterpart exists.
	Pruned int `json:"pruned"`
	// Backfilled counts RemoteIDs recovered by re-reading the remote set.
	Backfilled int `json:"backfilled"`

	DryRun bool `json:"dry_run"`

	Errors   []RecordError `json:"errors"`
	Warnings []Warning     `json:"warnings"`

	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
}

func newPushResult(partition string, dryRun bool) *PushResult {
	return &PushResult{
		Partition: partition,
		DryRun:    dryRun,
		Errors:    []RecordError{},
		Warnings:  []Warning{},
		StartedAt: time.Now(),
	}
}

func (r *PushResult) finish() *PushResult {
	r.Duration = time.Since(r.StartedAt).String()
	r.Success = len(r.Errors) == 0
	return r
}

// FieldDiff describes one field of a record present on both sides.
type FieldDiff struct {
	Field string `json:"field"`
	// Different is true when the two sides disagree on this field.
	Different bool `json:"different"`
	// Local and Remote are the rendered values shown to the decision maker.
	Local  string `json:"local"`
	Remote string `json:"remote"`
	// InLocal / InRemote report field presence on each side.
	InLocal  bool `json:"in_local"`
	InRemote bool `json:"in_remote"`
}

// DiffEntry is the field-level comparison of one natural key present on
// both sides.
type DiffEntry struct {
	NaturalKey string      `json:"natural_key"`
	RemoteID   string      `json:"remote_id,omitempty"`
	Fields     []FieldDiff `json:"fields"`
	// HasDifferences is true when any field differs.
	HasDifferences bool `json:"has_differences"`
}

// DiffReport buckets the symmetric difference between local and remote
// record sets. Natural keys are iterated in sorted order so repeated calls
// with unchanged data produce an identical report.
type DiffReport struct {
	Partition  string      `json:"partition"`
	OnlyLocal  []string    `json:"only_local"`
	OnlyRemote []string    `json:"only_remote"`
	Both       []DiffEntry `json:"both"`
}

// Decision tells ApplyDiff how to resolve one natural key: either a
// whole-record source, or a per-field pick.
type Decision struct {
	// Source is "local" or "remote" and applies to the whole record.
	// Kept for backward compatibility with whole-record resolution.
	Source string `json:"source,omitempty"`
	// Fields maps field names to "local" or "remote". Ignored when Source
	// is set.
	Fields map[string]string `json:"fields,omitempty"`
}

// Decision sources.
const (
	PickLocal  = "local"
	PickRemote = "remote"
)

// ApplyResult is the outcome of an ApplyDiff run.
type ApplyResult struct {
	Partition string `json:"partition"`

	// AppliedLocal counts records whose local side was overwritten from remote.
	AppliedLocal int `json:"applied_local"`
	// AppliedRemote counts records pushed outward via remote update.
	AppliedRemote int `json:"applied_remote"`
	// CreatedLocal counts local records created from remote-only records.
	CreatedLocal int `json:"created_local"`
	// CreatedRemote counts remote records created for local-only records.
	CreatedRemote int `json:"created_remote"`

	Errors   []RecordError `json:"errors"`
	Warnings []Warning     `json:"warnings"`

	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Success   bool      `json:"success"`
}

func newApplyResult(partition string) *ApplyResult {
	return &ApplyResult{
		Partition: partition,
		Errors:    []RecordError{},
		Warnings:  []Warning{},
		StartedAt: time.Now(),
	}
}

func (r *ApplyResult) finish() *ApplyResult {
	r.Duration = time.Since(r.StartedAt).String()
	r.Success = len(r.Errors) == 0
	return r
}
