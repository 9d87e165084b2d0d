package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrLinkExpired and ErrLinkSignature separate the two ways a verification
// signature can fail.
var (
	ErrLinkExpired   = errors.New("verification link expired")
	ErrLinkSignature = errors.New("verification link signature invalid")
)

// VerificationClaims is the payload signed into a verification link.
type VerificationClaims struct {
	EmailHash string `json:"hash"`
	jwt.RegisteredClaims
}

// EmailHash is the stable per-user value embedded in verification links.
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// SignVerification produces an HS256 signature binding user id and email
// hash until exp.
func SignVerification(key string, userID uint64, emailHash string, issuedAt, exp time.Time) (string, error) {
	claims := VerificationClaims{
		EmailHash: emailHash,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

// ParseVerification checks a signature against the expected id and email
// hash.  now drives the expiry check so callers can use their own clock.
func ParseVerification(key, signature string, userID uint64, emailHash string, now time.Time) error {
	claims := &VerificationClaims{}
	tok, err := jwt.ParseWithClaims(signature, claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrLinkExpired
		}
		return ErrLinkSignature
	}
	if !tok.Valid || claims.Subject != strconv.FormatUint(userID, 10) || claims.EmailHash != emailHash {
		return ErrLinkSignature
	}
	return nil
}
