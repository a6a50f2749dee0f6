package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kumamontessori/kuma/internal/cache"
	"github.com/kumamontessori/kuma/internal/carrier"
	"github.com/kumamontessori/kuma/internal/cart"
	"github.com/kumamontessori/kuma/internal/catalog"
	"github.com/kumamontessori/kuma/internal/config"
	"github.com/kumamontessori/kuma/internal/crypto"
	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/email"
	"github.com/kumamontessori/kuma/internal/handlers"
	"github.com/kumamontessori/kuma/internal/jobs"
	"github.com/kumamontessori/kuma/internal/logging"
	"github.com/kumamontessori/kuma/internal/observability"
	"github.com/kumamontessori/kuma/internal/payments"
	"github.com/kumamontessori/kuma/internal/payments/mercadopago"
	"github.com/kumamontessori/kuma/internal/receipt"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/internal/session"
	"github.com/kumamontessori/kuma/internal/storage"
	"github.com/kumamontessori/kuma/internal/stripe"
)

const outboundTimeout = 30 * time.Second

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	Metrics        *observability.HTTPMetrics
	Catalog        *services.CatalogService
	Auth           *services.AuthService
	Scheduler      *jobs.Scheduler
	Handlers       *handlers.Handlers
	// UploadDir is empty unless images are stored on local disk.
	UploadDir string

	closers []func()
}

// Base is what every command needs: configuration, logging and the database.
type Base struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *pgxpool.Pool
}

func (b *Base) Close() {
	if b == nil {
		return
	}
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Config != nil && b.Config.SentryDSN != "" {
		sentry.Flush(2 * time.Second)
	}
}

func NewBase(ctx context.Context) (*Base, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize sentry: %w", err)
		}
	}

	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stdout,
		Sentry: cfg.SentryDSN != "",
	})

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	return &Base{Config: cfg, Logger: logger, DB: database}, nil
}

func New() (*App, error) {
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	base, err := NewBase(startupCtx)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  base.Config,
		Logger:  base.Logger,
		DB:      base.DB,
		closers: []func(){base.Close},
	}
	if err := a.wire(startupCtx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger, database := a.Config, a.Logger, a.DB

	cacheProvider, err := cache.NewProvider(ctx, cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.CacheProvider = cacheProvider
	a.onClose(func() { closeCacheProvider(logger, cacheProvider) })

	userStore := db.NewUserStore(database)
	categoryStore := db.NewCategoryStore(database)
	productStore := db.NewProductStore(database)
	orderStore := db.NewOrderStore(database)
	shippingStore := db.NewShippingStore(database)

	signer, err := crypto.NewSigner(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize session signer: %w", err)
	}
	sessionStore, err := session.NewStore(ctx, session.Config{
		Provider:              cfg.SessionStoreProvider,
		RedisConnectionString: cfg.RedisConnectionString,
		KeyPrefix:             "kuma:",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	secureCookies := handlers.SecureCookiesFromConfig(cfg)
	sessionManager := session.NewManager(sessionStore, signer, userStore, secureCookies)
	a.SessionManager = sessionManager
	a.onClose(func() { closeSessionManager(logger, sessionManager) })

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize cart sealer: %w", err)
	}
	receipts, err := receipt.NewIssuer(cfg.ReceiptSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize receipt issuer: %w", err)
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		return err
	}
	if local, ok := images.(*storage.Local); ok {
		a.UploadDir = local.Dir()
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider: cfg.EmailProvider,
		APIKey:   cfg.EmailAPIKey,
		From:     cfg.EmailFrom,
		Domain:   cfg.EmailDomain,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize email provider: %w", err)
	}
	if emailProvider != nil {
		if err := emailProvider.ValidateAPIKey(ctx); err != nil {
			logger.Warn("email provider rejected the API key; order emails will fail", "provider", cfg.EmailProvider, "error", err)
		}
	}
	emails, err := services.NewOrderEmailSender(emailProvider, receipts, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize order emails: %w", err)
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}
	shippingCarrier := newCarrier(cfg, logger)
	metrics := observability.NewHTTPMetrics()
	a.Metrics = metrics

	catalogService := services.NewCatalogService(categoryStore, productStore, images, logger.With("component", "catalog_service"))
	shippingService := services.NewShippingService(
		shippingCarrier,
		shippingStore,
		orderStore,
		emails,
		services.ShippingConfig{OriginPostalCode: cfg.OCAOriginPostalCode, Operativa: cfg.OCAOperativa},
		logger.With("component", "shipping_service"),
	)
	shippingService.UseQuoteCache(cacheProvider, 0)
	checkoutService := services.NewCheckoutService(
		orderStore,
		productStore,
		catalog.NewPricer(),
		gateway,
		shippingService,
		receipts,
		cfg.BaseURL,
		logger.With("component", "checkout_service"),
	)
	paymentService := services.NewPaymentService(orderStore, gateway, cacheProvider, emails, metrics.WebhooksTotal, logger.With("component", "payment_service"))
	authService := services.NewAuthService(userStore, logger.With("component", "auth_service"))
	adminService := services.NewAdminService(orderStore, productStore, categoryStore, emails, logger.With("component", "admin_service"))
	a.Catalog = catalogService
	a.Auth = authService

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             database,
		Catalog:        catalogService,
		Checkout:       checkoutService,
		Payments:       paymentService,
		Shipping:       shippingService,
		AuthService:    authService,
		AdminService:   adminService,
		Carts:          cart.NewStore(sealer, secureCookies),
		SessionManager: sessionManager,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}
	a.Handlers = h

	if cfg.JobsEnabled {
		scheduler := jobs.NewScheduler(logger, metrics.JobRuns)
		if _, err := scheduler.Register(cfg.TrackingSyncSpec, jobs.NewTrackingSync(shippingService)); err != nil {
			return err
		}
		if _, err := scheduler.Register(cfg.PaymentReconcileSpec, jobs.NewPaymentReconcile(paymentService, cfg.PaymentReconcileAge)); err != nil {
			return err
		}
		a.Scheduler = scheduler
	}

	return nil
}

func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	switch cfg.StorageProvider {
	case "s3":
		store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocal(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return store, nil
	}
}

func newGateway(cfg *config.Config) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		gateway, err := stripe.NewGateway(cfg.StripeSecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize stripe gateway: %w", err)
		}
		return gateway, nil
	default:
		client, err := mercadopago.New(mercadopago.Config{
			AccessToken: cfg.MercadoPagoAccessToken,
			BaseURL:     cfg.MercadoPagoBaseURL,
			Sandbox:     cfg.MercadoPagoSandbox,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mercadopago client: %w", err)
		}
		return client, nil
	}
}

// newCarrier talks to OCA when credentials are configured and simulates it otherwise.
func newCarrier(cfg *config.Config, logger *slog.Logger) carrier.Carrier {
	if !cfg.OCAConfigured() {
		logger.Warn("OCA credentials are not configured; using the simulated carrier")
		return carrier.NewSimulated()
	}
	return carrier.NewOCA(carrier.OCAConfig{
		URL:              cfg.OCAURL,
		User:             cfg.OCAUser,
		Password:         cfg.OCAPassword,
		CUIT:             cfg.OCACUIT,
		ClientID:         cfg.OCAClientID,
		Operativa:        cfg.OCAOperativa,
		OriginPostalCode: cfg.OCAOriginPostalCode,
		HTTPClient:       observability.NewHTTPClient(outboundTimeout),
	})
}

// Start runs the background jobs.
func (a *App) Start() {
	if a != nil && a.Scheduler != nil {
		a.Scheduler.Start()
	}
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close stops the jobs and releases resources in reverse order of creation.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Scheduler != nil {
		<-a.Scheduler.Stop().Done()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeSessionManager(logger *slog.Logger, manager *session.Manager) {
	if manager == nil {
		return
	}
	if err := manager.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session manager", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
