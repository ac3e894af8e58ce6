// Package auth is the local replacement for the hosted sign-in backend:
// bcrypt passwords, HS256 access tokens tied to revocable sessions, and
// the admin/user roles that decide what each viewer may see.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"precatorios/internal/analytics"
	"precatorios/internal/core"
	"precatorios/internal/storage"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("invalid or expired session")
	ErrForbidden          = errors.New("admin role required")
	ErrSetupDone          = errors.New("first user already exists")
	ErrWeakPassword       = fmt.Errorf("password must have at least %d characters", minPasswordLength)
	ErrEmptyName          = errors.New("full name is required")
	ErrSelfDelete         = errors.New("cannot delete your own user")
	ErrUserExists         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// Store is the persistence the service needs.
type Store interface {
	CountProfiles(ctx context.Context) (int, error)
	CreateProfile(ctx context.Context, p core.Profile) error
	GetProfileByEmail(ctx context.Context, email string) (core.Profile, error)
	GetProfileByID(ctx context.Context, id string) (core.Profile, error)
	ListProfiles(ctx context.Context) ([]core.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	CreateSession(ctx context.Context, id, userID string, expiresAt time.Time) error
	SessionActive(ctx context.Context, id string, now time.Time) (bool, error)
	RevokeSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	SessionID   string    `json:"-"`
}

type Service struct {
	store      Store
	secret     []byte
	expiry     time.Duration
	bcryptCost int
	now        func() time.Time

	// setupMu serialises first-user creation.
	setupMu sync.Mutex
}

type Option func(*Service)

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, secret string, expiry time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if expiry <= 0 {
		return nil, errors.New("token expiry must be positive")
	}
	s := &Service{
		store:      store,
		secret:     []byte(secret),
		expiry:     expiry,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// IsFirstUser reports whether no user exists yet.
func (s *Service) IsFirstUser(ctx context.Context) (bool, error) {
	n, err := s.store.CountProfiles(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Setup creates the first user as an admin. It fails once any user exists.
func (s *Service) Setup(ctx context.Context, email, fullName, password string) (core.Profile, error) {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	first, err := s.IsFirstUser(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	if !first {
		return core.Profile{}, ErrSetupDone
	}
	p, err := s.createProfile(ctx, email, fullName, password, core.RoleAdmin)
	if err != nil {
		return core.Profile{}, err
	}
	slog.InfoContext(ctx, "First admin created", "component", "auth", "user_id", p.ID)
	return p, nil
}

// SignIn checks credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Token, core.Profile, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return Token{}, core.Profile{}, ErrInvalidCredentials
	}
	p, err := s.store.GetProfileByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return Token{}, core.Profile{}, ErrInvalidCredentials
	}
	if err != nil {
		return Token{}, core.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return Token{}, core.Profile{}, ErrInvalidCredentials
	}

	tok, err := s.issue(ctx, p.ID)
	if err != nil {
		return Token{}, core.Profile{}, err
	}
	return tok, p, nil
}

func (s *Service) issue(ctx context.Context, userID string) (Token, error) {
	now := s.now()
	sid := uuid.NewString()
	exp := now.Add(s.expiry)

	if err := s.store.CreateSession(ctx, sid, userID, exp); err != nil {
		return Token{}, fmt.Errorf("open session: %w", err)
	}

	claims := jwt.MapClaims{
		"sub": userID,
		"jti": sid,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresAt: exp, SessionID: sid}, nil
}

// Authenticate resolves a bearer token to its profile and session id.
func (s *Service) Authenticate(ctx context.Context, raw string) (core.Profile, string, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return core.Profile{}, "", ErrUnauthorized
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return core.Profile{}, "", ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return core.Profile{}, "", ErrUnauthorized
	}
	sub, _ := claims["sub"].(string)
	sid, _ := claims["jti"].(string)
	if sub == "" || sid == "" {
		return core.Profile{}, "", ErrUnauthorized
	}

	active, err := s.store.SessionActive(ctx, sid, s.now())
	if err != nil {
		return core.Profile{}, "", fmt.Errorf("check session: %w", err)
	}
	if !active {
		return core.Profile{}, "", ErrUnauthorized
	}

	p, err := s.store.GetProfileByID(ctx, sub)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Profile{}, "", ErrUnauthorized
	}
	if err != nil {
		return core.Profile{}, "", fmt.Errorf("load profile: %w", err)
	}
	return p, sid, nil
}

// SignOut revokes the session.
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	return s.store.RevokeSession(ctx, sessionID)
}

// PurgeExpiredSessions drops sessions whose tokens can no longer be used.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Expired sessions purged", "component", "auth", "deleted", n)
	}
	return n, nil
}

// CreateUser adds a user. Only admins may call it.
func (s *Service) CreateUser(ctx context.Context, actor core.Profile, email, fullName, password string, role core.Role) (core.Profile, error) {
	if !actor.IsAdmin() {
		return core.Profile{}, ErrForbidden
	}
	if err := role.Validate(); err != nil {
		return core.Profile{}, err
	}
	return s.createProfile(ctx, email, fullName, password, role)
}

// ListUsers returns every profile. Only admins may call it.
func (s *Service) ListUsers(ctx context.Context, actor core.Profile) ([]core.Profile, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.ListProfiles(ctx)
}

// DeleteUser removes another user. Only admins may call it.
func (s *Service) DeleteUser(ctx context.Context, actor core.Profile, id string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if actor.ID == id {
		return ErrSelfDelete
	}
	err := s.store.DeleteProfile(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *Service) createProfile(ctx context.Context, email, fullName, password string, role core.Role) (core.Profile, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.Profile{}, err
	}
	fullName = strings.Join(strings.Fields(fullName), " ")
	if fullName == "" {
		return core.Profile{}, ErrEmptyName
	}
	if len(password) < minPasswordLength {
		return core.Profile{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return core.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	roles := []core.Role{core.RoleUser}
	if role == core.RoleAdmin {
		roles = []core.Role{core.RoleAdmin, core.RoleUser}
	}
	p := core.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(hash),
		Roles:        roles,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return core.Profile{}, ErrUserExists
		}
		return core.Profile{}, err
	}
	return p, nil
}

// ViewerFor maps a profile to what it may see: admins see every record,
// everyone else only the records assigned to their own name.
func ViewerFor(p core.Profile) analytics.Viewer {
	if p.IsAdmin() {
		return analytics.Viewer{All: true}
	}
	return analytics.Viewer{Assignee: p.FullName}
}
