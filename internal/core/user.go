package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Role grants access levels to dashboard users.
type Role string

// Profile is a dashboard user. FullName doubles as the assignee name the
// user is scoped to when not an admin.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidEmail = errors.New("invalid email")
)

func (r Role) Validate() error {
	if r == RoleAdmin || r == RoleUser {
		return nil
	}
	return ErrInvalidRole
}

// IsAdmin reports whether the profile holds the admin role.
func (p Profile) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an address, rejecting obviously
// malformed input.
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") {
		return "", ErrInvalidEmail
	}
	return s, nil
}
