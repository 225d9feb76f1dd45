package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

const exactKeyPrefix = "answer:"

// NormalizePrompt canonicalizes a question for exact-match keying:
// trim, case-fold, collapse interior whitespace.
func NormalizePrompt(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	return strings.Join(strings.Fields(q), " ")
}

// ExactKey hashes the normalized question into the exact-match cache key.
func ExactKey(question string) string {
	sum := md5.Sum([]byte(NormalizePrompt(question)))
	return exactKeyPrefix + hex.EncodeToString(sum[:])
}
