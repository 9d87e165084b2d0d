package utils // package utils provides helpers for bearer token and verification link handling

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for bearer secrets
	"encoding/hex"  // hex encoding and decoding functions
	"errors"        // sentinel for malformed tokens
	"strconv"       // token id formatting
	"strings"       // splitting "<id>|<secret>"
)

// ErrMalformedToken is returned when a presented bearer value does not have
// the "<id>|<secret>" shape.
var ErrMalformedToken = errors.New("malformed token")

// secretBytes is the amount of entropy in each bearer secret (40 hex chars).
const secretBytes = 20

// NewTokenSecret returns a random hex secret for a bearer token.
func NewTokenSecret() (string, error) {
	return randomHex(secretBytes)
}

// HashTokenSecret returns the SHA-256 hex digest of a bearer secret.  Only
// this digest is stored, so a leaked table cannot be replayed.
func HashTokenSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// FormatPlainToken joins the row id and secret into the value handed to the
// client.  The id lets the server find the row without scanning hashes.
func FormatPlainToken(id uint64, secret string) string {
	return strconv.FormatUint(id, 10) + "|" + secret
}

// ParsePlainToken splits a client-presented token into id and secret.
func ParsePlainToken(plain string) (uint64, string, error) {
	idPart, secret, ok := strings.Cut(strings.TrimSpace(plain), "|")
	if !ok || idPart == "" || secret == "" {
		return 0, "", ErrMalformedToken
	}
	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, "", ErrMalformedToken
	}
	return id, secret, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
