package promise

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// ErrBadSignature is returned when a token fails verification, which means
// the value was tampered with or was signed under a different promise key.
var ErrBadSignature = errors.New("item signature invalid")

// Sign binds an item code to a promise key. The token travels to the
// client in place of the raw item code, so an order can only reference
// items the server handed out under the same promise.
func Sign(itemCode, key string) string {
	return itemCode + "." + signature(itemCode, key)
}

// Verify re-derives the item code from a signed token. The plaintext half
// is never trusted until the MAC matches.
func Verify(token, key string) (string, error) {
	idx := strings.LastIndex(token, ".")
	if idx <= 0 || idx == len(token)-1 {
		return "", ErrBadSignature
	}
	value, sig := token[:idx], token[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(signature(value, key))) {
		return "", ErrBadSignature
	}
	return value, nil
}

func signature(value, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
