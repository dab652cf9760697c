package slugutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Assigner produces external-facing identifiers for knowledge bases and QA
// collections. The salt is injected at construction so derivation stays
// deterministic per deployment without reaching for process-wide state.
type Assigner struct {
	salt string
}

func New(salt string) *Assigner {
	return &Assigner{salt: salt}
}

// Derive returns the default slug for a display name: hex sha256(name+salt).
// It is pure and deterministic; callers own the uniqueness check.
func (a *Assigner) Derive(name string) string {
	sum := sha256.Sum256([]byte(name + a.salt))
	return hex.EncodeToString(sum[:])
}

// Random returns a random slug for entities whose name must not be derivable
// from the external identifier.
func (a *Assigner) Random() string {
	return uuid.NewString()
}
