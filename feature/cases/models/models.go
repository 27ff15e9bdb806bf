package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SyncState marks a record's agreement with the remote side.
type SyncState string

const (
	// StateSynced means the record matches the last confirmed remote write.
	StateSynced SyncState = "synced"
	// StatePending means local fields changed since the last confirmed
	// remote write, or the record exists only locally.
	StatePending SyncState = "pending"
	// StateConflict is a transient state used only while a diff result
	// awaits a field-level decision. It is never persisted past the decision.
	StateConflict SyncState = "conflict"
)

// ParseSyncState validates a raw state string at the boundary.
// Invalid values fail fast instead of propagating as opaque strings.
func ParseSyncState(raw string) (SyncState, error) {
	switch SyncState(raw) {
	case StateSynced, StatePending, StateConflict:
		return SyncState(raw), nil
	default:
		return "", fmt.Errorf("invalid sync state %q", raw)
	}
}

// FieldKind identifies the shape of a field value.
type FieldKind string

const (
	KindText   FieldKind = "text"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "bool"
	KindLink   FieldKind = "link"
)

// LinkValue is a linked-record field: a display rendering plus the set of
// remote-side identifiers it points at.
type LinkValue struct {
	Display   string   `json:"display"`
	RemoteIDs []string `json:"remote_ids,omitempty"`
}

// FieldValue is one business field of a record.
type FieldValue struct {
	Kind   FieldKind  `json:"kind"`
	Text   string     `json:"text,omitempty"`
	Number float64    `json:"number,omitempty"`
	Bool   bool       `json:"bool,omitempty"`
	Link   *LinkValue `json:"link,omitempty"`
}

// TextValue builds a text field value.
func TextValue(s string) FieldValue {
	return FieldValue{Kind: KindText, Text: s}
}

// NumberValue builds a numeric field value.
func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: KindNumber, Number: n}
}

// BoolValue builds a boolean field value.
func BoolValue(b bool) FieldValue {
	return FieldValue{Kind: KindBool, Bool: b}
}

// LinkFieldValue builds a linked-record field value. The remote ids are
// stored sorted so two links to the same records always compare equal.
func LinkFieldValue(display string, remoteIDs []string) FieldValue {
	ids := append([]string(nil), remoteIDs...)
	sort.Strings(ids)
	return FieldValue{Kind: KindLink, Link: &LinkValue{Display: display, RemoteIDs: ids}}
}

// Render returns the human-readable form of the value. Linked-record fields
// render as a single aggregated value because their storage shape differs
// between the local and remote sides.
func (v FieldValue) Render() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindLink:
		if v.Link == nil {
			return ""
		}
		if v.Link.Display != "" {
			return v.Link.Display
		}
		return strings.Join(v.Link.RemoteIDs, ", ")
	default:
		return ""
	}
}

// Equal reports whether two field values carry the same business content.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindLink:
		if v.Link == nil || o.Link == nil {
			return v.Link == o.Link
		}
		if v.Link.Display != o.Link.Display || len(v.Link.RemoteIDs) != len(o.Link.RemoteIDs) {
			return false
		}
		for i := range v.Link.RemoteIDs {
			if v.Link.RemoteIDs[i] != o.Link.RemoteIDs[i] {
				return false
			}
		}
		return true
	default:
		return v.Text == o.Text && v.Number == o.Number && v.Bool == o.Bool
	}
}

// FieldMap holds the business content of a record, keyed by field name.
type FieldMap map[string]FieldValue

// SortedNames returns the field names in sorted order for deterministic
// iteration.
func (m FieldMap) SortedNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the map.
func (m FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(m))
	for name, v := range m {
		if v.Kind == KindLink && v.Link != nil {
			v.Link = &LinkValue{
				Display:   v.Link.Display,
				RemoteIDs: append([]string(nil), v.Link.RemoteIDs...),
			}
		}
		out[name] = v
	}
	return out
}

// Record is the unit of reconciliation: a locally-editable mirror row of a
// remote table record, keyed by (Partition, NaturalKey).
type Record struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Partition identifies the owning scope. Records in different
	// partitions are independent.
	Partition string `gorm:"size:64;uniqueIndex:idx_partition_natural_key" json:"partition"`

	// NaturalKey is the business identifier, unique within a partition.
	NaturalKey string `gorm:"size:128;uniqueIndex:idx_partition_natural_key" json:"natural_key"`

	// RemoteID points at the corresponding remote record. When non-null it
	// must be unique across the entire remote table, regardless of partition.
	RemoteID *string `gorm:"size:64;uniqueIndex" json:"remote_id,omitempty"`

	// Fields is the business content.
	Fields FieldMap `gorm:"serializer:json" json:"fields"`

	// Checksum is the digest of Fields, recomputed on every local write.
	Checksum string `gorm:"size:32" json:"checksum"`

	// SyncState marks agreement with the remote side.
	SyncState SyncState `gorm:"size:16" json:"sync_state"`

	// LocalVersion increments on every local content update.
	LocalVersion int `json:"local_version"`

	// RemoteCreatedAt / RemoteModifiedAt are advisory timestamps copied from
	// the remote side. Used for dedup tie-breaking and display only.
	RemoteCreatedAt  *time.Time `json:"remote_created_at,omitempty"`
	RemoteModifiedAt *time.Time `json:"remote_modified_at,omitempty"`

	// LastSyncedAt is when the record last completed a confirmed remote write.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	// CreatedAt / UpdatedAt are managed by the sync engine and the store,
	// not by GORM: an init sync may adopt remote timestamps verbatim.
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName overrides the GORM table name.
func (Record) TableName() string {
	return "mirror_records"
}
