package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kumamontessori/kuma/internal/crypto"
)

const (
	cookieName = "kuma_cart"
	cookieTTL  = 30 * 24 * time.Hour
	// Browsers drop cookies above 4 KB.
	maxCookieBytes = 3800
)

var ErrCartTooLarge = errors.New("cart does not fit in a cookie")

// Store reads and writes the cart cookie.
type Store struct {
	sealer crypto.Sealer
	secure bool
}

func NewStore(sealer crypto.Sealer, secure bool) *Store {
	return &Store{sealer: sealer, secure: secure}
}

// Load never fails: a missing or unreadable cookie is an empty cart.
func (s *Store) Load(r *http.Request) *Cart {
	c := &Cart{}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return c
	}
	payload, err := s.sealer.Open(cookie.Value)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(payload, c); err != nil {
		return &Cart{}
	}
	return c
}

func (s *Store) Save(w http.ResponseWriter, c *Cart) error {
	if c == nil || c.IsEmpty() {
		s.Clear(w)
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	sealed, err := s.sealer.Seal(payload)
	if err != nil {
		return fmt.Errorf("failed to seal cart: %w", err)
	}
	if len(sealed) > maxCookieBytes {
		return ErrCartTooLarge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
