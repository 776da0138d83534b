// Package auth checks the single shared admin secret.
package auth

import (
	"github.com/bis-events/gatepass/internal/apperr"
	"github.com/bis-events/gatepass/pkg/utils"
)

// ErrUnauthorized is returned for a missing or wrong admin key.
var ErrUnauthorized = apperr.E(apperr.Unauthorized, "invalid admin key")

// AdminGate authorizes admin operations. When a bcrypt hash is configured it
// takes precedence over the plain key.
type AdminGate struct {
	key  string
	hash string
}

// NewAdminGate creates a gate. With neither key nor hash set, every request is refused.
func NewAdminGate(key, hash string) *AdminGate {
	return &AdminGate{key: key, hash: hash}
}

// Authorize returns ErrUnauthorized unless credential matches.
func (g *AdminGate) Authorize(credential string) error {
	if credential == "" {
		return ErrUnauthorized
	}
	switch {
	case g.hash != "":
		if utils.CheckSecret(credential, g.hash) {
			return nil
		}
	case g.key != "":
		if utils.EqualSecret(credential, g.key) {
			return nil
		}
	}
	return ErrUnauthorized
}
