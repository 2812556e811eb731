package security

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SharedSecret guards machine-to-machine endpoints such as the cron trigger
// and the normalised payment webhook. An empty secret matches nothing.
type SharedSecret string

func (s SharedSecret) Matches(candidate string) bool {
	if s == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s), []byte(candidate)) == 1
}

// SHA512Hex returns the lowercase hex digest of the concatenated parts.
func SHA512Hex(parts ...string) string {
	h := sha512.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestEqual compares two hex digests in constant time, ignoring case.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}
