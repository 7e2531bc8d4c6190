package crypto

import (
	"strings"

	"github.com/google/uuid"
)

// NewOpaqueToken returns 32 lower-case hex characters from a random UUID.
func NewOpaqueToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSessionID returns a random UUID string.
func NewSessionID() string {
	return uuid.NewString()
}
