package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CacheKey derives the stable cache key for a scan decision.
//
// The key binds three things together:
//
//   - direction: input and output scans never share decisions
//   - normalized text: whitespace-insensitive identity of the content
//   - configVersion: the active scanner-configuration version
//
// Changing the scanner set (and bumping configVersion) invalidates all prior
// cache entries without an explicit flush, because the derived keys no
// longer match.
func CacheKey(direction Direction, text, configVersion string) string {
	h := sha256.New()
	h.Write([]byte(direction))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeText(text)))
	h.Write([]byte{0})
	h.Write([]byte(configVersion))
	return "guard:" + string(direction) + ":" + hex.EncodeToString(h.Sum(nil))
}

// NormalizeText canonicalizes text for cache-key purposes: leading and
// trailing whitespace is stripped and interior whitespace runs collapse to a
// single space. Two prompts differing only in whitespace therefore share one
// cached verdict.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
