package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/internal/session"
	"github.com/kumamontessori/kuma/ui/views"
)

const (
	loginPath     = "/admin-login"
	adminHomePath = "/admin"
)

// RequireAdmin resolves the session cookie and stores it in the request
// context. Pages redirect to the login; API calls get a 401.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := h.sessionManager.GetSession(ctx, r)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNoSession):
			case errors.Is(err, session.ErrInvalid), errors.Is(err, session.ErrUnauthorized):
				h.sessionManager.DestroySession(ctx, w, r)
			default:
				h.loggerFromContext(ctx).Warn("failed to resolve admin session", "error", err)
				h.sessionManager.DestroySession(ctx, w, r)
			}

			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No autorizado"})
				return
			}
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}

		ctx = logging.With(session.WithData(ctx, sess), h.logger, "user_id", sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentSession is the session RequireAdmin resolved, or the one named by
// the cookie on routes outside the guard. Requests without the cookie never
// reach the store.
func (h *Handlers) currentSession(r *http.Request) *session.Data {
	if r == nil {
		return nil
	}
	if sess := session.FromContext(r.Context()); sess != nil {
		return sess
	}
	if h == nil || h.sessionManager == nil {
		return nil
	}
	if _, err := r.Cookie(session.CookieName); errors.Is(err, http.ErrNoCookie) {
		return nil
	}
	sess, err := h.sessionManager.GetSession(r.Context(), r)
	if err != nil {
		return nil
	}
	return sess
}

func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sess := h.currentSession(r); sess != nil {
		http.Redirect(w, r, adminHomePath, http.StatusSeeOther)
		return
	}

	required, err := h.authService.SetupRequired(ctx)
	if err != nil {
		h.loggerFromContext(ctx).Error("failed to check admin setup", "error", err)
	}
	if required {
		http.Redirect(w, r, "/admin/setup", http.StatusSeeOther)
		return
	}

	h.render(w, r, http.StatusOK, views.LoginPage(h.adminMeta(r, "Ingresar"), ""))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login accepts the login form or a JSON body.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	asJSON := wantsJSON(r)

	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(w, r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}
	req.Email = strings.TrimSpace(req.Email)

	fail := func(status int, message string) {
		if asJSON {
			writeJSON(w, status, map[string]string{"error": message})
			return
		}
		meta := h.adminMeta(r, "Ingresar")
		meta.Error = message
		h.render(w, r, status, views.LoginPage(meta, req.Email))
	}

	user, err := h.authService.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(http.StatusUnauthorized, services.ErrInvalidCredentials.Message)
			return
		}
		logger.Error("failed to authenticate admin", "error", err)
		fail(http.StatusInternalServerError, "Error interno del servidor")
		return
	}

	if err := h.sessionManager.CreateSession(ctx, w, user); err != nil {
		logger.Error("failed to create session", "error", err, "user_id", user.ID)
		fail(http.StatusInternalServerError, "Error interno del servidor")
		return
	}
	logger.Info("admin logged in", "user_id", user.ID)

	if asJSON {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    map[string]string{"id": user.ID.String(), "name": user.Name, "email": user.Email},
		})
		return
	}
	http.Redirect(w, r, adminHomePath, http.StatusSeeOther)
}

// Logout destroys the session and redirects to login.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.DestroySession(r.Context(), w, r)
	redirectWithToast(w, r, loginPath, "logged_out")
}

func (h *Handlers) APILogout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.DestroySession(r.Context(), w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) SetupPage(w http.ResponseWriter, r *http.Request) {
	if !h.setupOpen(w, r) {
		return
	}
	h.render(w, r, http.StatusOK, views.SetupPage(h.adminMeta(r, "Configuración inicial"), views.SetupForm{}))
}

// Setup creates the first administrator and sends them to the login page.
func (h *Handlers) Setup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.setupOpen(w, r) {
		return
	}

	form := views.SetupForm{
		Name:  strings.TrimSpace(r.PostFormValue("name")),
		Email: strings.TrimSpace(r.PostFormValue("email")),
	}
	user, err := h.authService.Setup(ctx, services.SetupInput{
		Name:                 form.Name,
		Email:                form.Email,
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirm"),
	})
	if err != nil {
		if errors.Is(err, services.ErrSetupClosed) {
			http.Redirect(w, r, loginPath, http.StatusSeeOther)
			return
		}
		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.loggerFromContext(ctx).Error("failed to create first admin", "error", err)
		}
		meta := h.adminMeta(r, "Configuración inicial")
		meta.Error = message
		h.render(w, r, status, views.SetupPage(meta, form))
		return
	}

	h.loggerFromContext(ctx).Info("first admin created", "user_id", user.ID)
	redirectWithToast(w, r, loginPath, "admin_created")
}

// setupOpen redirects to the login page once an administrator exists.
func (h *Handlers) setupOpen(w http.ResponseWriter, r *http.Request) bool {
	required, err := h.authService.SetupRequired(r.Context())
	if err != nil {
		h.loggerFromContext(r.Context()).Error("failed to check admin setup", "error", err)
		h.renderError(w, r, err)
		return false
	}
	if !required {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return false
	}
	return true
}
