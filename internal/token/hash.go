package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashRefresh returns the hex-encoded SHA-256 hash of a refresh token value.
// The session store persists and indexes this hash instead of the raw token;
// all comparisons happen as indexed equality inside the database.
func HashRefresh(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
