package summarycache

import (
	"regexp"
	"strings"

	"github.com/starford/chronicle/internal/models"
)

const namePrefix = "summary-"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9-]`)

// Sanitize replaces every character outside [A-Za-z0-9-] with '_'.
func Sanitize(periodKey string) string {
	return unsafeKeyChars.ReplaceAllString(periodKey, "_")
}

// Prefix is the listing prefix shared by every object of typ.
func Prefix(typ models.BatchType) string {
	return namePrefix + string(typ) + "-"
}

// ObjectName returns the store key for a summary.
func ObjectName(typ models.BatchType, periodKey, hash string) string {
	return Prefix(typ) + Sanitize(periodKey) + "-" + hash
}

// ParsedName is an object name split back into its parts. Key is the
// sanitized period key.
type ParsedName struct {
	Type models.BatchType
	Key  string
	Hash string
}

// ParseObjectName splits a name produced by ObjectName. The hash is the
// segment after the last '-'.
func ParseObjectName(name string) (ParsedName, bool) {
	rest, ok := strings.CutPrefix(name, namePrefix)
	if !ok {
		return ParsedName{}, false
	}
	typ, rest, ok := strings.Cut(rest, "-")
	if !ok || !models.BatchType(typ).Valid() {
		return ParsedName{}, false
	}
	i := strings.LastIndex(rest, "-")
	if i <= 0 {
		return ParsedName{}, false
	}
	key, hash := rest[:i], rest[i+1:]
	if !hashPattern.MatchString(hash) {
		return ParsedName{}, false
	}
	return ParsedName{Type: models.BatchType(typ), Key: key, Hash: hash}, true
}
