package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kumamontessori/kuma/internal/cart"
	"github.com/kumamontessori/kuma/internal/carrier"
	"github.com/kumamontessori/kuma/internal/config"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/internal/session"
	"github.com/kumamontessori/kuma/ui/views"
)

const (
	maxWebhookBodyBytes = 1 << 20 // 1 MB
	maxJSONBodyBytes    = 64 << 10
)

// Handlers serves the storefront, the admin back-office and the JSON API.
type Handlers struct {
	config         *config.Config
	db             *pgxpool.Pool
	catalog        *services.CatalogService
	checkout       *services.CheckoutService
	payments       *services.PaymentService
	shipping       *services.ShippingService
	authService    *services.AuthService
	adminService   *services.AdminService
	carts          *cart.Store
	sessionManager *session.Manager
	logger         *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             *pgxpool.Pool
	Catalog        *services.CatalogService
	Checkout       *services.CheckoutService
	Payments       *services.PaymentService
	Shipping       *services.ShippingService
	AuthService    *services.AuthService
	AdminService   *services.AdminService
	Carts          *cart.Store
	SessionManager *session.Manager
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("handlers dependencies: catalog is required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("handlers dependencies: checkout is required")
	}
	if deps.Payments == nil {
		return nil, fmt.Errorf("handlers dependencies: payments is required")
	}
	if deps.Shipping == nil {
		return nil, fmt.Errorf("handlers dependencies: shipping is required")
	}
	if deps.AuthService == nil {
		return nil, fmt.Errorf("handlers dependencies: authService is required")
	}
	if deps.AdminService == nil {
		return nil, fmt.Errorf("handlers dependencies: adminService is required")
	}
	if deps.Carts == nil {
		return nil, fmt.Errorf("handlers dependencies: carts is required")
	}
	if deps.SessionManager == nil {
		return nil, fmt.Errorf("handlers dependencies: sessionManager is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		catalog:        deps.Catalog,
		checkout:       deps.Checkout,
		payments:       deps.Payments,
		shipping:       deps.Shipping,
		authService:    deps.AuthService,
		adminService:   deps.AdminService,
		carts:          deps.Carts,
		sessionManager: deps.SessionManager,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if h.db == nil {
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}
	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func SecureCookiesFromConfig(cfg *config.Config) bool {
	if cfg == nil {
		return false
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil {
			return strings.EqualFold(parsed.Scheme, "https")
		}
	}

	return cfg.Port == "443" || cfg.Port == "8443"
}

// errorStatus maps service errors onto HTTP status codes and the message
// that may be shown to the caller.
func errorStatus(err error) (int, string) {
	if message, ok := services.UserMessage(err); ok {
		return http.StatusBadRequest, message
	}
	var validation *carrier.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, validation.Message
	}

	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, "Orden no encontrada"
	case errors.Is(err, services.ErrProductNotFound):
		return http.StatusNotFound, "Producto no encontrado"
	case errors.Is(err, services.ErrCategoryNotFound):
		return http.StatusNotFound, "Categoría no encontrada"
	case errors.Is(err, services.ErrShippingNotFound):
		return http.StatusNotFound, "Envío no encontrado"
	case errors.Is(err, services.ErrReceiptInvalid):
		return http.StatusNotFound, "Orden no encontrada"
	case errors.Is(err, services.ErrPaymentFailed):
		return http.StatusBadGateway, "No pudimos iniciar el pago. Probá de nuevo en unos minutos"
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return http.StatusConflict, "La orden no puede pasar a ese estado"
	default:
		return http.StatusInternalServerError, "Error interno del servidor"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers a JSON request with {"error": message}, logging the
// cause of anything that is not the caller's fault.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(v); err != nil {
		return &services.UserError{Message: "JSON inválido", Err: err}
	}
	return nil
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := component.Render(r.Context(), w); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to render page", "error", err, "path", r.URL.Path)
	}
}

// renderError shows the storefront error page for err. Not found errors get
// the 404 page.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := errorStatus(err)
	meta := h.storeMeta(r, "")
	switch {
	case status == http.StatusNotFound:
		meta.Title = "Página no encontrada"
		h.render(w, r, status, views.NotFoundPage(meta))
	default:
		h.loggerFromContext(r.Context()).Error("request failed", "error", err)
		meta.Title = "Error"
		h.render(w, r, http.StatusInternalServerError, views.ErrorPage(meta))
	}
}

var toasts = map[string]string{
	"added":            "Producto agregado al carrito",
	"cart_updated":     "Carrito actualizado",
	"cart_cleared":     "Carrito vaciado",
	"cart_full":        "El carrito está lleno. Finalizá la compra o quitá productos",
	"saved":            "Cambios guardados",
	"deleted":          "Eliminado correctamente",
	"image_uploaded":   "Imagen subida",
	"status_updated":   "Estado de la orden actualizado",
	"label_generated":  "Etiqueta generada. La orden fue marcada como enviada",
	"admin_created":    "Administrador creado. Ya podés ingresar",
	"logged_out":       "Sesión cerrada",
	"product_missing":  "El producto ya no está disponible",
	"invalid_quantity": "Cantidad inválida",
}

func toastMessage(r *http.Request) string {
	return toasts[r.URL.Query().Get("toast")]
}

func (h *Handlers) storeMeta(r *http.Request, title string) views.Meta {
	meta := views.Meta{Title: title, Flash: toastMessage(r), Path: r.URL.Path}
	if h.carts != nil {
		meta.CartCount = h.carts.Load(r).TotalItems()
	}
	return meta
}

func (h *Handlers) adminMeta(r *http.Request, title string) views.Meta {
	meta := views.Meta{Title: title, Flash: toastMessage(r), Path: r.URL.Path}
	if sess := session.FromContext(r.Context()); sess != nil {
		meta.AdminName = sess.Name
	}
	return meta
}

func redirectWithToast(w http.ResponseWriter, r *http.Request, path, toast string) {
	target := path
	if toast != "" {
		target += "?toast=" + url.QueryEscape(toast)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// wantsJSON reports whether the caller posted JSON or asked for it.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
