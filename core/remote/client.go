package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Source defines the operations the sync engine needs from the remote
// table service. The remote side is the authoritative record table; it is
// never mutated except through these calls.
type Source interface {
	// ListTables returns the table catalog mapping table name to table id.
	ListTables(ctx context.Context) (map[string]string, error)
	// ListAll returns the complete record set of a table, draining
	// pagination cursors internally.
	ListAll(ctx context.Context, tableRef string) ([]RawRecord, error)
	// Create inserts a single record and returns its remote id.
	Create(ctx context.Context, tableRef string, fields map[string]any) (string, error)
	// Update overwrites the given fields of a single record.
	Update(ctx context.Context, tableRef, recordID string, fields map[string]any) error
	// BatchCreate inserts records in bounded-size chunks. The returned
	// slices are index-aligned with fieldSets; a nil error means the
	// record at that index was created.
	BatchCreate(ctx context.Context, tableRef string, fieldSets []map[string]any) ([]string, []error)
	// BatchUpdate applies updates in bounded-size chunks dispatched with
	// bounded parallelism. Returns the success count and index-aligned errors.
	BatchUpdate(ctx context.Context, tableRef string, updates []RecordUpdate) (int, []error)
	// BatchDelete removes records by id. Returns the deleted count and
	// index-aligned errors.
	BatchDelete(ctx context.Context, tableRef string, ids []string) (int, []error)
}

// Client is the HTTP implementation of Source. Every call waits on a shared
// rate limiter and retries transient failures with exponential backoff.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a remote table API client from the configuration.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: time.Duration(timeout) * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
	}
}

// pageSize is the listing page size requested from the remote API.
const pageSize = 100

type tableList struct {
	Tables []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"tables"`
}

type recordPage struct {
	Records []RawRecord `json:"records"`
	Offset  string      `json:"offset"`
}

type recordEnvelope struct {
	Records []RawRecord `json:"records"`
}

type deleteResult struct {
	Deleted []string `json:"deleted"`
}

// ListTables returns the catalog of tables keyed by table name.
func (c *Client) ListTables(ctx context.Context) (map[string]string, error) {
	var out tableList
	if err := c.call(ctx, http.MethodGet, "/v1/tables", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	catalog := make(map[string]string, len(out.Tables))
	for _, t := range out.Tables {
		catalog[t.Name] = t.ID
	}
	return catalog, nil
}

// ListAll drains every page of a table before returning. Sync runs must
// never diff against a half-seen remote snapshot.
func (c *Client) ListAll(ctx context.Context, tableRef string) ([]RawRecord, error) {
	var all []RawRecord
	offset := ""

	for {
		path := fmt.Sprintf("/v1/tables/%s/records?pageSize=%d", url.PathEscape(tableRef), pageSize)
		if offset != "" {
			path += "&offset=" + url.QueryEscape(offset)
		}

		var page recordPage
		if err := c.call(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list records of %s: %w", tableRef, err)
		}

		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

// Create inserts a single record and returns the remote id assigned to it.
func (c *Client) Create(ctx context.Context, tableRef string, fields map[string]any) (string, error) {
	body := map[string]any{"records": []map[string]any{{"fields": fields}}}

	var out recordEnvelope
	if err := c.call(ctx, http.MethodPost, recordsPath(tableRef), body, &out); err != nil {
		return "", err
	}
	if len(out.Records) == 0 {
		return "", fmt.Errorf("remote create returned no record for table %s", tableRef)
	}
	return out.Records[0].ID, nil
}

// Update overwrites the given fields of an existing remote record.
func (c *Client) Update(ctx context.Context, tableRef, recordID string, fields map[string]any) error {
	body := map[string]any{"records": []map[string]any{{"id": recordID, "fields": fields}}}

	var out recordEnvelope
	return c.call(ctx, http.MethodPatch, recordsPath(tableRef), body, &out)
}

// BatchCreate inserts records chunked to the configured maximum batch size.
// A chunk-level failure is reported against every record in that chunk;
// other chunks are still attempted.
func (c *Client) BatchCreate(ctx context.Context, tableRef string, fieldSets []map[string]any) ([]string, []error) {
	ids := make([]string, len(fieldSets))
	errs := make([]error, len(fieldSets))

	for start := 0; start < len(fieldSets); start += c.cfg.MaxBatchSize {
		end := min(start+c.cfg.MaxBatchSize, len(fieldSets))

		chunk := make([]map[string]any, 0, end-start)
		for _, fields := range fieldSets[start:end] {
			chunk = append(chunk, map[string]any{"fields": fields})
		}

		var out recordEnvelope
		if err := c.call(ctx, http.MethodPost, recordsPath(tableRef), map[string]any{"records": chunk}, &out); err != nil {
			for i := start; i < end; i++ {
				errs[i] = err
			}
			continue
		}

		for i, rec := range out.Records {
			if start+i < end {
				ids[start+i] = rec.ID
			}
		}
	}

	return ids, errs
}

// BatchUpdate applies updates in chunks dispatched concurrently, bounded by
// the configured worker count.
func (c *Client) BatchUpdate(ctx context.Context, tableRef string, updates []RecordUpdate) (int, []error) {
	errs := make([]error, len(updates))

	var mu sync.Mutex
	success := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for start := 0; start < len(updates); start += c.cfg.MaxBatchSize {
		end := min(start+c.cfg.MaxBatchSize, len(updates))

		g.Go(func() error {
			chunk := make([]map[string]any, 0, end-start)
			for _, u := range updates[start:end] {
				chunk = append(chunk, map[string]any{"id": u.ID, "fields": u.Fields})
			}

			var out recordEnvelope
			err := c.call(gctx, http.MethodPatch, recordsPath(tableRef), map[string]any{"records": chunk}, &out)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				for i := start; i < end; i++ {
					errs[i] = err
				}
				return nil // partial failure never aborts the batch
			}
			success += end - start
			return nil
		})
	}

	_ = g.Wait()
	return success, errs
}

// BatchDelete removes records by remote id, chunked like the other batch calls.
func (c *Client) BatchDelete(ctx context.Context, tableRef string, ids []string) (int, []error) {
	errs := make([]error, len(ids))
	deleted := 0

	for start := 0; start < len(ids); start += c.cfg.MaxBatchSize {
		end := min(start+c.cfg.MaxBatchSize, len(ids))

		q := url.Values{}
		for _, id := range ids[start:end] {
			q.Add("ids", id)
		}

		var out deleteResult
		err := c.call(ctx, http.MethodDelete, recordsPath(tableRef)+"?"+q.Encode(), nil, &out)
		if err != nil {
			for i := start; i < end; i++ {
				errs[i] = err
			}
			continue
		}
		deleted += len(out.Deleted)
	}

	return deleted, errs
}

func recordsPath(tableRef string) string {
	return fmt.Sprintf("/v1/tables/%s/records", url.PathEscape(tableRef))
}

// call performs one API call with rate limiting, retry on transient errors,
// and status-code classification into the error taxonomy.
func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	maxRetries := c.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.once(ctx, method, path, payload, out)
		if IsTransient(err) {
			if c.logger != nil {
				c.logger.Warn("Retrying transient remote failure",
					zap.String("method", method),
					zap.String("path", path),
					zap.Error(err),
				)
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransientError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, firstLine(data))}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return &ValidationError{StatusCode: resp.StatusCode, Message: firstLine(data)}
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, firstLine(data))
	}
}

// firstLine trims an error body to something loggable.
func firstLine(data []byte) string {
	const maxLen = 200
	s := string(data)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
