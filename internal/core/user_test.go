package core

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{" Ana@Example.com ", "ana@example.com", true},
		{"ana", "", false},
		{"@example.com", "", false},
		{"ana@", "", false},
		{"a na@example.com", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeEmail(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestProfileIsAdmin(t *testing.T) {
	if (Profile{Roles: []Role{RoleUser}}).IsAdmin() {
		t.Fatal("user should not be admin")
	}
	if !(Profile{Roles: []Role{RoleUser, RoleAdmin}}).IsAdmin() {
		t.Fatal("expected admin")
	}
	if err := Role("owner").Validate(); err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}
