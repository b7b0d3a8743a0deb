// Package auth implements the shared-secret credential gate. There are no
// user accounts; a single password per role unlocks a session tagged with
// that role.
package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// Role tags a session with its access level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Gate matches a submitted password against the per-role bcrypt hashes.
type Gate struct {
	secrets map[Role]string
}

// NewGate constructs a Gate from role to bcrypt hash.
func NewGate(secrets map[Role]string) *Gate {
	return &Gate{secrets: secrets}
}

// Authenticate returns the role whose secret matches the password. Roles are
// tried in fixed order so a password matching both resolves to admin.
func (g *Gate) Authenticate(_ context.Context, password string) (Role, error) {
	for _, role := range []Role{RoleAdmin, RoleStaff} {
		hash, ok := g.secrets[role]
		if !ok {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil {
			return role, nil
		}
	}
	return "", shared.ErrInvalidCredentials
}
