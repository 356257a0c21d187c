package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// Hmac256 signs body with key and returns the hex digest. Every request
// to the provider carries this signature, and callback payloads are
// verified with it.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// VerifyHMAC checks a received signature against the expected digest of
// payload under key, in constant time.
func VerifyHMAC(key, payload, receivedHMAC string) bool {
	expected := Hmac256([]byte(payload), []byte(key))
	return hmac.Equal([]byte(receivedHMAC), []byte(expected))
}

// HashSecret hashes a webhook secret for storage. Only the bcrypt hash is
// kept on disk; the raw secret lives in the provider dashboard.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareSecret reports whether secret matches a stored bcrypt hash.
func CompareSecret(storedHash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret)) == nil
}
