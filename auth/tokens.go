package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const (
	apiKeyPrefix     = "sk-"
	apiKeyBytes      = 32
	sessionRandBytes = 4
)

// HashPassword returns the hex SHA-256 of a password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// NewAPIKey returns 'sk-' followed by 32 random bytes in hex.
func NewAPIKey() (string, error) {
	token, err := randomHex(apiKeyBytes)
	if err != nil {
		return "", err
	}
	return apiKeyPrefix + token, nil
}

// newSessionToken returns 'sess_<epochMillis>_<8 hex random>_<first 8 hex of md5(userID)>'.
func newSessionToken(userID string, now time.Time) (string, error) {
	random, err := randomHex(sessionRandBytes)
	if err != nil {
		return "", err
	}
	sum := md5.Sum([]byte(userID))
	return fmt.Sprintf("sess_%d_%s_%s", now.UnixMilli(), random, hex.EncodeToString(sum[:])[:8]), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return hex.EncodeToString(b), nil
}
