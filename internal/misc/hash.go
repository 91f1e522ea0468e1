package misc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SumSHA256 hashes value with key appended, hex encoded.
func SumSHA256(value []byte, key string) string {
	sum := sha256.Sum256(append(value, []byte(key)...))
	return hex.EncodeToString(sum[:])
}

// VerifySHA256 compares got against SumSHA256(value, key) in constant time, ignoring case.
func VerifySHA256(value []byte, key, got string) bool {
	want := SumSHA256(value, key)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(got))), []byte(want))
}
