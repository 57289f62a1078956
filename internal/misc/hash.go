package misc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the hex HMAC-SHA256 of a request body.
const SignatureHeader = "HashSHA256"

// Sign returns the hex-encoded HMAC-SHA256 of value under key.
func Sign(value []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(value)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the signature of value under key.
func Verify(value []byte, key, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(value)
	return hmac.Equal(mac.Sum(nil), want)
}
