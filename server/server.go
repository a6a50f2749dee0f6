package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kumamontessori/kuma/internal/config"
	"github.com/kumamontessori/kuma/internal/handlers"
	"github.com/kumamontessori/kuma/internal/observability"
	"github.com/kumamontessori/kuma/internal/storage"
	uiassets "github.com/kumamontessori/kuma/ui/assets"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	metrics    *observability.HTTPMetrics
	uploadDir  string
	httpServer *http.Server
}

// Options configures what the router serves besides the handlers. UploadDir
// is served under /uploads/ when images are stored locally.
type Options struct {
	Metrics   *observability.HTTPMetrics
	UploadDir string
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewHTTPMetrics()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		handlers:  h,
		metrics:   opts.Metrics,
		uploadDir: opts.UploadDir,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	// form guards a state-changing browser route.
	form := func(f http.HandlerFunc) http.Handler {
		return h.RequireSameOrigin(f)
	}
	// adminAPI guards a JSON route that only the back-office may call.
	adminAPI := func(f http.HandlerFunc) http.Handler {
		return h.RequireAdmin(h.RequireSameOrigin(f))
	}

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.MetricsContext)
	r.Use(s.metrics.Middleware)

	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET").Name("metrics")

	r.NotFoundHandler = http.HandlerFunc(h.NotFound)

	// Static files - must be before the page routes
	r.PathPrefix("/assets/").Handler(http.StripPrefix("/assets/", noDirectoryListing(http.FileServer(http.FS(uiassets.FS))))).Name("assets")
	if s.uploadDir != "" {
		r.PathPrefix(storage.LocalURLPrefix).Handler(http.StripPrefix(storage.LocalURLPrefix, noDirectoryListing(http.FileServer(http.Dir(s.uploadDir))))).Name("uploads")
	}

	// Storefront
	r.HandleFunc("/", h.Home).Methods("GET").Name("home")
	r.HandleFunc("/productos", h.Products).Methods("GET").Name("products")
	r.HandleFunc("/productos/{slug}", h.Product).Methods("GET").Name("product")
	r.HandleFunc("/categorias", h.Categories).Methods("GET").Name("categories")
	r.HandleFunc("/categorias/{slug}", h.Category).Methods("GET").Name("category")
	r.HandleFunc("/seguimiento", h.Tracking).Methods("GET").Name("tracking")
	r.HandleFunc("/contacto", h.Contact).Methods("GET").Name("contact")
	r.HandleFunc("/nosotros", h.About).Methods("GET").Name("about")

	r.HandleFunc("/carrito", h.CartPage).Methods("GET").Name("cart")
	r.Handle("/carrito/agregar", form(h.CartAdd)).Methods("POST").Name("cart.add")
	r.Handle("/carrito/actualizar", form(h.CartUpdate)).Methods("POST").Name("cart.update")
	r.Handle("/carrito/eliminar", form(h.CartRemove)).Methods("POST").Name("cart.remove")
	r.Handle("/carrito/vaciar", form(h.CartClear)).Methods("POST").Name("cart.clear")

	r.HandleFunc("/checkout", h.CheckoutPage).Methods("GET").Name("checkout")
	r.Handle("/checkout", form(h.CheckoutSubmit)).Methods("POST").Name("checkout.submit")
	r.HandleFunc("/checkout/{outcome:success|failure|pending}", h.CheckoutResult).Methods("GET").Name("checkout.result")

	// Public API
	r.Handle("/api/checkout", form(h.APICheckout)).Methods("POST").Name("api.checkout")
	r.HandleFunc("/api/orders/status", h.APIOrderStatus).Methods("GET").Name("api.orders.status")
	r.HandleFunc("/api/products", h.APIProducts).Methods("GET").Name("api.products")
	r.HandleFunc("/api/products/{slug}", h.APIProduct).Methods("GET").Name("api.product")
	r.HandleFunc("/api/categories", h.APICategories).Methods("GET").Name("api.categories")
	r.HandleFunc("/api/get-mercado-pago-public-key", h.MercadoPagoPublicKey).Methods("GET").Name("api.mercadopago.public_key")
	r.HandleFunc("/api/shipping/oca/quote", h.APIShippingQuote).Methods("POST").Name("api.shipping.quote")
	r.HandleFunc("/api/shipping/oca/tracking", h.APIShippingTracking).Methods("GET").Name("api.shipping.tracking")
	r.HandleFunc("/api/shipping/tracking/{number}", h.APIShipmentTracking).Methods("GET").Name("api.shipping.shipment")

	// Webhooks are signed by the gateway and never carry our Origin.
	r.HandleFunc("/api/webhooks/mercadopago", h.MercadoPagoWebhook).Methods("GET", "POST").Name("webhooks.mercadopago")
	r.HandleFunc("/api/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")

	// Admin API
	r.Handle("/api/shipping/oca/label", adminAPI(h.APIShippingLabel)).Methods("POST").Name("api.shipping.label")
	r.Handle("/api/shipping/create", adminAPI(h.APIShippingCreate)).Methods("POST").Name("api.shipping.create")
	r.Handle("/api/shipping/{id}/status", adminAPI(h.APIShippingStatus)).Methods("PUT", "POST").Name("api.shipping.status")
	r.Handle("/api/products/upload-image/{id}", adminAPI(h.APIUploadProductImage)).Methods("POST").Name("api.products.upload_image")
	r.Handle("/api/auth/logout", form(h.APILogout)).Methods("POST").Name("api.auth.logout")

	// Public admin routes
	r.HandleFunc("/admin-login", h.LoginPage).Methods("GET").Name("admin.login")
	r.Handle("/admin-login", form(h.Login)).Methods("POST").Name("admin.login.submit")
	r.HandleFunc("/admin/setup", h.SetupPage).Methods("GET").Name("admin.setup")
	r.Handle("/admin/setup", form(h.Setup)).Methods("POST").Name("admin.setup.submit")
	r.HandleFunc("/admin/logout", h.Logout).Methods("GET").Name("admin.logout")
	r.Handle("/admin/logout", form(h.Logout)).Methods("POST").Name("admin.logout.submit")

	// Protected admin routes - require an admin session
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.RequireAdmin)
	adminRouter.Use(h.RequireSameOrigin)
	adminRouter.HandleFunc("", h.AdminDashboard).Methods("GET").Name("admin.dashboard")

	adminRouter.HandleFunc("/products", h.AdminProducts).Methods("GET").Name("admin.products")
	adminRouter.HandleFunc("/products", h.AdminProductCreate).Methods("POST").Name("admin.products.create")
	adminRouter.HandleFunc("/products/new", h.AdminProductNew).Methods("GET").Name("admin.products.new")
	adminRouter.HandleFunc("/products/{id}", h.AdminProductEdit).Methods("GET").Name("admin.products.edit")
	adminRouter.HandleFunc("/products/{id}", h.AdminProductUpdate).Methods("POST").Name("admin.products.update")
	adminRouter.HandleFunc("/products/{id}/delete", h.AdminProductDelete).Methods("POST").Name("admin.products.delete")
	adminRouter.HandleFunc("/products/{id}/image", h.AdminProductImage).Methods("POST").Name("admin.products.image")

	adminRouter.HandleFunc("/categories", h.AdminCategories).Methods("GET").Name("admin.categories")
	adminRouter.HandleFunc("/categories", h.AdminCategoryCreate).Methods("POST").Name("admin.categories.create")
	adminRouter.HandleFunc("/categories/new", h.AdminCategoryNew).Methods("GET").Name("admin.categories.new")
	adminRouter.HandleFunc("/categories/{id}", h.AdminCategoryEdit).Methods("GET").Name("admin.categories.edit")
	adminRouter.HandleFunc("/categories/{id}", h.AdminCategoryUpdate).Methods("POST").Name("admin.categories.update")
	adminRouter.HandleFunc("/categories/{id}/delete", h.AdminCategoryDelete).Methods("POST").Name("admin.categories.delete")

	adminRouter.HandleFunc("/orders", h.AdminOrders).Methods("GET").Name("admin.orders")
	adminRouter.HandleFunc("/orders/{id}", h.AdminOrder).Methods("GET").Name("admin.orders.show")
	adminRouter.HandleFunc("/orders/{id}/status", h.AdminOrderStatus).Methods("POST").Name("admin.orders.status")
	adminRouter.HandleFunc("/orders/{id}/label", h.AdminOrderLabel).Methods("POST").Name("admin.orders.label")

	return r
}

// noDirectoryListing answers directory paths with 404 instead of an index.
func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
