package remote

import "time"

// RawRecord is a record as delivered by the remote table API.
// Fields carry loosely-typed JSON values; conversion into the local
// representation happens in the sync layer.
type RawRecord struct {
	// ID is the remote record identifier, unique across the whole table space.
	ID string `json:"id"`
	// Fields maps field names to raw JSON values.
	Fields map[string]any `json:"fields"`
	// CreatedTime is when the remote record was created.
	CreatedTime time.Time `json:"createdTime"`
	// ModifiedTime is when the remote record was last modified.
	ModifiedTime time.Time `json:"modifiedTime"`
}

// RecordUpdate pairs a remote record id with the fields to overwrite.
// Fields not present in the map are left untouched remotely.
type RecordUpdate struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}
