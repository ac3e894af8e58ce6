package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"precatorios/internal/core"
)

// CountProfiles returns how many users exist; zero means first access.
func (r *SQLiteRepository) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// CreateProfile inserts the profile and its roles in one transaction.
func (r *SQLiteRepository) CreateProfile(ctx context.Context, p core.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.FullName, p.PasswordHash, p.CreatedAt.Unix())
	if isUniqueViolation(err) {
		return fmt.Errorf("create profile %s: %w", p.Email, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	for _, role := range p.Roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role) VALUES (?, ?)`, p.ID, string(role)); err != nil {
			return fmt.Errorf("assign role %s: %w", role, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetProfileByEmail(ctx context.Context, email string) (core.Profile, error) {
	return r.getProfile(ctx, `WHERE email = ?`, email)
}

func (r *SQLiteRepository) GetProfileByID(ctx context.Context, id string) (core.Profile, error) {
	return r.getProfile(ctx, `WHERE id = ?`, id)
}

func (r *SQLiteRepository) getProfile(ctx context.Context, where string, arg any) (core.Profile, error) {
	var (
		p       core.Profile
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, password_hash, created_at FROM profiles `+where, arg).
		Scan(&p.ID, &p.Email, &p.FullName, &p.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, ErrNotFound
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = time.Unix(created, 0).UTC()

	roles, err := r.rolesFor(ctx, p.ID)
	if err != nil {
		return core.Profile{}, err
	}
	p.Roles = roles
	return p, nil
}

func (r *SQLiteRepository) rolesFor(ctx context.Context, userID string) ([]core.Role, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}
	defer rows.Close()

	var roles []core.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, core.Role(role))
	}
	return roles, rows.Err()
}

// ListProfiles returns every profile ordered by name, roles included.
func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]core.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.email, p.full_name, p.created_at, ur.role
		   FROM profiles p
		   LEFT JOIN user_roles ur ON ur.user_id = p.id
		  ORDER BY p.full_name, p.id, ur.role`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []core.Profile
	for rows.Next() {
		var (
			p       core.Profile
			created int64
			role    sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &created, &role); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			p.CreatedAt = time.Unix(created, 0).UTC()
			out = append(out, p)
		}
		if role.Valid {
			last := &out[len(out)-1]
			last.Roles = append(last.Roles, core.Role(role.String))
		}
	}
	return out, rows.Err()
}

// DeleteProfile removes a user; roles and sessions cascade.
func (r *SQLiteRepository) DeleteProfile(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`, id, userID, expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionActive reports whether the session exists, is not revoked and has
// not expired at now.
func (r *SQLiteRepository) SessionActive(ctx context.Context, id string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE id = ? AND revoked = 0 AND expires_at > ?`,
		id, now.Unix()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) RevokeSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sessions SET revoked = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions drops sessions that expired before now.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ? OR revoked = 1`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
