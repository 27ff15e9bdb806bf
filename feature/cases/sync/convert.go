package sync

import (
	"fmt"
	"strings"

	"case-mirror/core/remote"
	"case-mirror/core/utils"
	"case-mirror/feature/cases/models"
)

// FromRaw converts a raw remote record into the local representation.
// The natural key is extracted from keyField and removed from the business
// fields; it never diffs because it is the join key.
func FromRaw(partition, keyField string, raw remote.RawRecord) (models.Record, error) {
	key := strings.TrimSpace(utils.ToString(raw.Fields[keyField]))
	if key == "" || raw.Fields[keyField] == nil {
		return models.Record{}, fmt.Errorf("remote record %s has no %s field", raw.ID, keyField)
	}

	fields := make(models.FieldMap, len(raw.Fields))
	for name, val := range raw.Fields {
		if name == keyField || val == nil {
			continue
		}
		fields[name] = fieldFromRaw(val)
	}

	rec := models.Record{
		Partition:  partition,
		NaturalKey: key,
		Fields:     fields,
	}
	if raw.ID != "" {
		id := raw.ID
		rec.RemoteID = &id
	}
	if !raw.CreatedTime.IsZero() {
		t := raw.CreatedTime
		rec.RemoteCreatedAt = &t
	}
	if !raw.ModifiedTime.IsZero() {
		t := raw.ModifiedTime
		rec.RemoteModifiedAt = &t
	}
	return rec, nil
}

// fieldFromRaw maps a loosely-typed remote value onto a FieldValue.
// Linked-record fields arrive either as an array of remote ids or as an
// array of {text, record_ids} objects; both collapse into one link value.
func fieldFromRaw(val any) models.FieldValue {
	switch v := val.(type) {
	case bool:
		return models.BoolValue(v)
	case float64:
		return models.NumberValue(v)
	case float32, int, int64, int32, uint, uint64:
		// The JSON decoder only produces float64, but records built from
		// other sources carry native numeric widths.
		return models.NumberValue(utils.ToFloat(v))
	case string:
		return models.TextValue(v)
	case []any:
		return linkFromRaw(v)
	case map[string]any:
		return linkFromRaw([]any{v})
	default:
		return models.TextValue(utils.ToString(v))
	}
}

func linkFromRaw(items []any) models.FieldValue {
	var ids []string
	var texts []string

	for _, item := range items {
		switch it := item.(type) {
		case map[string]any:
			if txt := utils.ToString(it["text"]); it["text"] != nil && txt != "" {
				texts = append(texts, txt)
			}
			ids = append(ids, utils.ToStringSlice(it["record_ids"])...)
		default:
			ids = append(ids, utils.ToString(it))
		}
	}

	return models.LinkFieldValue(strings.Join(texts, ", "), ids)
}

// PayloadFields builds the full remote write payload for a record: every
// business field plus the natural key under keyField for re-identification.
func PayloadFields(rec *models.Record, keyField string) map[string]any {
	payload := make(map[string]any, len(rec.Fields)+1)
	payload[keyField] = rec.NaturalKey
	for name, v := range rec.Fields {
		payload[name] = payloadValue(v)
	}
	return payload
}

// PartialPayload builds a remote write payload containing only the named
// fields, plus the natural key.
func PartialPayload(rec *models.Record, keyField string, fieldNames []string) map[string]any {
	payload := make(map[string]any, len(fieldNames)+1)
	payload[keyField] = rec.NaturalKey
	for _, name := range fieldNames {
		if v, ok := rec.Fields[name]; ok {
			payload[name] = payloadValue(v)
		}
	}
	return payload
}

func payloadValue(v models.FieldValue) any {
	switch v.Kind {
	case models.KindNumber:
		return v.Number
	case models.KindBool:
		return v.Bool
	case models.KindLink:
		if v.Link == nil {
			return []string{}
		}
		return v.Link.RemoteIDs
	default:
		return v.Text
	}
}
