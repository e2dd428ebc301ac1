package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

const (
	// maxCollectionName is the longest name both backends accept.
	maxCollectionName = 64

	// hashSuffixLength is len("_" + 8 hex chars).
	hashSuffixLength = 9

	defaultCollectionName = "wikirag"
)

// CollectionName turns a free-form label such as an article title into a
// valid collection name:
//
//	"Dune Part Two"          -> "dune_part_two"
//	"Dune: Part Two (2024)"  -> "dune_part_two_2024"
//	"" or "   "              -> "wikirag"
//	"東京"                   -> "c_" + 8 hex chars
//
// Letters outside ASCII are dropped. A non-blank label with nothing left
// becomes "c_" plus a hash of the label, so it never shares the default
// collection. Names longer than 64 characters are
// truncated and suffixed with a hash of the full name, so distinct long
// labels stay distinct.
func CollectionName(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	underscore := true // suppresses leading and repeated separators
	for _, r := range strings.ToLower(label) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}

	name := strings.TrimRight(b.String(), "_")
	if name == "" {
		if strings.TrimSpace(label) == "" {
			return defaultCollectionName
		}
		return "c_" + shortHash(label)
	}
	if len(name) > maxCollectionName {
		name = strings.TrimRight(name[:maxCollectionName-hashSuffixLength], "_") +
			"_" + shortHash(name)
	}
	return name
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}
