package memory

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

const refreshTokenBytes = 32

// newRefreshToken returns 256 bits of randomness, base64url without padding.
func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// fingerprint is what gets stored instead of the refresh token itself.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// uidSource hands out monotonic ULIDs. Callers hold Provider.mu.
type uidSource struct {
	entropy io.Reader
}

func newUIDSource() *uidSource {
	return &uidSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *uidSource) next(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate uid: %w", err)
	}
	return id.String(), nil
}
