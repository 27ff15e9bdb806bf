package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"case-mirror/feature/cases/models"
)

// volatileFields are bookkeeping names excluded from the digest. They change
// on every write without representing business content.
var volatileFields = map[string]struct{}{
	"created time":       {},
	"last modified time": {},
	"created_at":         {},
	"updated_at":         {},
	"last_synced_at":     {},
	"sync_count":         {},
}

// IsVolatileField reports whether a field name is excluded from checksums.
func IsVolatileField(name string) bool {
	_, ok := volatileFields[strings.ToLower(name)]
	return ok
}

// Normalize converts a field map into a canonical byte representation:
// keys sorted, values in a fixed whitespace-free encoding, volatile fields
// omitted. Every component is length-prefixed so distinct payloads can
// never collide on the encoded form.
func Normalize(fields models.FieldMap) []byte {
	var b strings.Builder

	for _, name := range fields.SortedNames() {
		if IsVolatileField(name) {
			continue
		}
		v := fields[name]

		writeToken(&b, name)
		b.WriteString(string(v.Kind))
		b.WriteByte(':')

		switch v.Kind {
		case models.KindLink:
			if v.Link != nil {
				writeToken(&b, v.Link.Display)
				for _, id := range v.Link.RemoteIDs {
					writeToken(&b, id)
				}
			}
		default:
			writeToken(&b, v.Render())
		}
		b.WriteByte(';')
	}

	return []byte(b.String())
}

func writeToken(b *strings.Builder, s string) {
	fmt.Fprintf(b, "%d:%s", len(s), s)
}

// Checksum digests the normalized field map. The digest is stable across
// runs and process restarts; it changes iff the business content changes
// under the normalization rule.
func Checksum(fields models.FieldMap) string {
	sum := sha256.Sum256(Normalize(fields))
	return hex.EncodeToString(sum[:16])
}
