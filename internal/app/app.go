package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storefront-go/internal/api"
	"storefront-go/internal/cart"
	"storefront-go/internal/catalog"
	"storefront-go/internal/config"
	"storefront-go/internal/orders"
	"storefront-go/internal/session"
	"storefront-go/internal/storage"
	"storefront-go/internal/users"
	"storefront-go/internal/worker"
)

// Application holds all the major components of the client.
type Application struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      storage.KeyValueStore
	Session    *session.Store
	Client     *api.Client
	Users      *users.Service
	Catalog    *catalog.Service
	Orders     *orders.Service
	Counter    *cart.Counter
	WorkerPool *worker.WorkerPool
	Redirects  *LoginRedirect
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger     *zerolog.Logger
	httpClient *http.Client
}

// WithLogger replaces the logger built from the config.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithHTTPClient sets the HTTP client used for API calls. The configured
// request timeout is not applied to it.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates and initializes a new Application instance. The session is
// not hydrated until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := NewLogger(cfg.LogLevel, os.Stderr)
	if o.logger != nil {
		logger = *o.logger
	}

	// Setup: durable client state
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessionStore := session.NewStore(store, logger)

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout.Duration}
	}

	redirects := NewLoginRedirect(logger)
	client, err := api.New(cfg.APIURL, sessionStore,
		api.WithHTTPClient(httpClient),
		api.WithNavigator(redirects),
		api.WithLogger(logger),
		api.WithLoginPath(cfg.LoginPath),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	// Setup: WorkerPool
	pool := worker.NewWorkerPool(cfg.NumWorkers, cfg.QueueSize)
	counter := cart.NewCounter()

	return &Application{
		Config:     cfg,
		Logger:     logger.With().Str("component", "app").Logger(),
		Store:      store,
		Session:    sessionStore,
		Client:     client,
		Users:      users.NewService(client),
		Catalog:    catalog.NewService(client, pool),
		Orders:     orders.NewService(client, counter, logger),
		Counter:    counter,
		WorkerPool: pool,
		Redirects:  redirects,
	}, nil
}

// openStore opens the configured backend, sealed with the encryption key
// when one is set.
func openStore(ctx context.Context, cfg *config.Config) (storage.KeyValueStore, error) {
	var store storage.KeyValueStore
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		rs, err := storage.NewRedisStore(ctx, &redis.Options{
			Addr: cfg.Storage.RedisAddr,
			DB:   cfg.Storage.RedisDB,
		}, cfg.Storage.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		store = rs
	default:
		dbCfg := storage.DefaultConfig()
		dbCfg.Path = cfg.Storage.DBPath
		db, err := storage.OpenDatabase(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		store = db
	}

	if cfg.Storage.EncryptionKey == "" {
		return store, nil
	}
	sealed, err := storage.NewEncryptedStore(store, []byte(cfg.Storage.EncryptionKey))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	return sealed, nil
}

// Start hydrates the session from durable storage and starts the worker pool.
// A stored access token close to expiry is renewed before any command runs.
func (a *Application) Start(ctx context.Context) error {
	a.WorkerPool.Start()

	// An unreadable store leaves the session anonymous; the user can log in again.
	if err := a.Session.Initialize(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Starting without a stored session")
	}
	if a.Session.IsAuthenticated() {
		if _, err := a.Client.RefreshIfExpiring(ctx, a.Config.RefreshLeeway.Duration); err != nil {
			a.Logger.Warn().Err(err).Msg("Stored session could not be renewed")
		}
	}
	a.Logger.Debug().
		Str("state", a.Session.State().String()).
		Int("workers", a.WorkerPool.Workers()).
		Msg("Application started")
	return nil
}

// Stop shuts down the worker pool and closes storage.
func (a *Application) Stop(ctx context.Context) error {
	a.WorkerPool.Stop()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Error closing storage")
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.Logger.Debug().Msg("Application stopped")
	return nil
}
