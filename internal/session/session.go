// Package session authenticates admin users with a signed cookie that
// carries the user ID.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kumamontessori/kuma/internal/crypto"
	"github.com/kumamontessori/kuma/internal/models"
)

const (
	CookieName = "session_id"
	CookieTTL  = 7 * 24 * time.Hour
	// CacheTTL bounds how long a resolved user is trusted before it is
	// looked up again.
	CacheTTL = 5 * time.Minute
)

var (
	ErrNoSession    = errors.New("no session cookie")
	ErrInvalid      = errors.New("invalid session cookie")
	ErrUnauthorized = errors.New("session user is not an admin")
)

// Data is the resolved session kept in the store.
type Data struct {
	UserID uuid.UUID   `json:"user_id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

func (d *Data) IsAdmin() bool {
	return d != nil && d.Role == models.RoleAdmin
}

type Store interface {
	Get(ctx context.Context, key string) (*Data, bool)
	Set(ctx context.Context, key string, data *Data)
	Delete(ctx context.Context, key string)
	Close() error
}

type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type Manager struct {
	store  Store
	signer *crypto.Signer
	users  UserLookup
	secure bool
}

func NewManager(store Store, signer *crypto.Signer, users UserLookup, secure bool) *Manager {
	return &Manager{
		store:  store,
		signer: signer,
		users:  users,
		secure: secure,
	}
}

func (m *Manager) Close() error {
	if m == nil || m.store == nil {
		return nil
	}
	return m.store.Close()
}

func dataFromUser(user *models.User) *Data {
	return &Data{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
}

// CreateSession sets the cookie for an authenticated admin and primes the store.
func (m *Manager) CreateSession(ctx context.Context, w http.ResponseWriter, user *models.User) error {
	if user == nil {
		return fmt.Errorf("session user is required")
	}
	if !user.IsAdmin() {
		return ErrUnauthorized
	}

	m.store.Set(ctx, user.ID.String(), dataFromUser(user))
	http.SetCookie(w, m.cookie(m.signer.Sign(user.ID.String()), int(CookieTTL.Seconds())))
	return nil
}

// GetSession verifies the cookie signature and resolves the user, from the
// store when possible.
func (m *Manager) GetSession(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	value, err := m.signer.Verify(cookie.Value)
	if err != nil {
		return nil, ErrInvalid
	}
	userID, err := uuid.Parse(value)
	if err != nil {
		return nil, ErrInvalid
	}

	if data, ok := m.store.Get(ctx, userID.String()); ok {
		return data, nil
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session user: %w", err)
	}
	if !user.IsAdmin() {
		return nil, ErrUnauthorized
	}

	data := dataFromUser(user)
	m.store.Set(ctx, userID.String(), data)
	return data, nil
}

// DestroySession evicts the cached user and clears the cookie.
func (m *Manager) DestroySession(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if value, err := m.signer.Verify(cookie.Value); err == nil {
			m.store.Delete(ctx, value)
		}
	}
	http.SetCookie(w, m.cookie("", -1))
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type contextKey struct{}

func WithData(ctx context.Context, data *Data) context.Context {
	return context.WithValue(ctx, contextKey{}, data)
}

// FromContext returns the session resolved by the admin guard, or nil.
func FromContext(ctx context.Context) *Data {
	if ctx == nil {
		return nil
	}
	data, _ := ctx.Value(contextKey{}).(*Data)
	return data
}

func cloneData(data *Data) *Data {
	if data == nil {
		return nil
	}
	cloned := *data
	return &cloned
}
