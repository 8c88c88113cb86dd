// Package summarycache persists batch summaries in a per-user object store,
// keyed by period and a fingerprint of the batch content.
package summarycache

import (
	"time"

	"github.com/starford/chronicle/internal/checksum"
	"github.com/starford/chronicle/internal/models"
)

// HashLen is the number of hex characters kept from the content digest.
const HashLen = 16

// recordSep separates entries in the digest input so that moving text
// across an entry boundary changes the hash.
const recordSep = "\n\x1e\n"

// ContentHash fingerprints a batch from its entry timestamps and texts.
// Entries must already be in batch order.
func ContentHash(batch []models.Entry) string {
	d := checksum.NewDigest()
	for _, e := range batch {
		d.WriteString(e.Date.UTC().Format(time.RFC3339Nano))
		d.WriteString("\n")
		d.WriteString(e.Text)
		d.WriteString(recordSep)
	}
	return d.Hex(HashLen)
}
