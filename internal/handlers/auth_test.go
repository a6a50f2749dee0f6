package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kumamontessori/kuma/internal/models"
	"github.com/kumamontessori/kuma/internal/session"
)

type missingUsers struct{}

func (missingUsers) GetByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, errors.New("user not found")
}

// adminCookie logs an admin in and returns the session cookie.
func adminCookie(t *testing.T, h *Handlers) *http.Cookie {
	t.Helper()
	user := &models.User{ID: uuid.New(), Name: "Ana", Email: "ana@kuma.example", Role: models.RoleAdmin}
	rec := httptest.NewRecorder()
	if err := h.sessionManager.CreateSession(t.Context(), rec, user); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	t.Fatalf("session cookie was not set")
	return nil
}

func TestRequireAdmin_RejectsMissingSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		status   int
		location string
	}{
		{name: "page redirects to login", path: "/admin/orders", status: http.StatusSeeOther, location: loginPath},
		{name: "api gets 401", path: "/api/shipping/create", status: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newTestHandlers(t)
			next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("next handler should not run")
			})

			rec := httptest.NewRecorder()
			h.RequireAdmin(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))

			if rec.Code != tc.status {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, tc.status)
			}
			if location := rec.Header().Get("Location"); location != tc.location {
				t.Fatalf("unexpected redirect location: got=%q want=%q", location, tc.location)
			}
		})
	}
}

func TestRequireAdmin_TamperedCookieIsCleared(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: uuid.NewString() + ".forged"})
	rec := httptest.NewRecorder()
	h.RequireAdmin(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusSeeOther)
	}
	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.CookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected the session cookie to be cleared")
	}
}

func TestRequireAdmin_StoresSessionInContext(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	var got *session.Data
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = session.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(adminCookie(t, h))
	rec := httptest.NewRecorder()
	h.RequireAdmin(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNoContent)
	}
	if got == nil || got.Name != "Ana" || !got.IsAdmin() {
		t.Fatalf("unexpected session in context: %+v", got)
	}
}

func TestLoginPage(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)

	rec := httptest.NewRecorder()
	h.LoginPage(rec, httptest.NewRequest(http.MethodGet, loginPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `action="/admin-login"`) {
		t.Fatalf("login page is missing the form")
	}

	req := httptest.NewRequest(http.MethodGet, loginPath, nil)
	req.AddCookie(adminCookie(t, h))
	rec = httptest.NewRecorder()
	h.LoginPage(rec, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != adminHomePath {
		t.Fatalf("expected a logged in admin to be sent to the panel, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t)
	cookie := adminCookie(t, h)

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if location := rec.Header().Get("Location"); location != loginPath+"?toast=logged_out" {
		t.Fatalf("unexpected redirect location: %q", location)
	}

	// The cached session is gone and the user lookup fails.
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler should not run after logout")
	})
	req = httptest.NewRequest(http.MethodGet, "/api/shipping/create", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.RequireAdmin(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status after logout: got=%d", rec.Code)
	}
}
