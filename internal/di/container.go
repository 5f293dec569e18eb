package di

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/sneakerhub/storefront/internal/platform/auth"
	"github.com/sneakerhub/storefront/internal/platform/config"
	pfirestore "github.com/sneakerhub/storefront/internal/platform/firestore"
	"github.com/sneakerhub/storefront/internal/platform/idempotency"
	"github.com/sneakerhub/storefront/internal/platform/messaging"
	"github.com/sneakerhub/storefront/internal/platform/observability"
	"github.com/sneakerhub/storefront/internal/platform/storage"
	"github.com/sneakerhub/storefront/internal/repositories"
	"github.com/sneakerhub/storefront/internal/repositories/blob"
	"github.com/sneakerhub/storefront/internal/repositories/catalog"
	firestorerepo "github.com/sneakerhub/storefront/internal/repositories/firestore"
	"github.com/sneakerhub/storefront/internal/repositories/memory"
	"github.com/sneakerhub/storefront/internal/services"
)

const healthProbeNamespace = "_health"

// Services bundles the service-layer contracts that handlers rely upon. Account is nil when
// Firebase is not configured.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Checkout services.CheckoutService
	Account  services.AccountService
	System   services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config      config.Config
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Localizer   *services.Localizer
	Formatter   *services.PriceFormatter
	Catalog     *catalog.Repository
	Carts       *services.CartStore
	Broadcaster *services.CartBroadcaster
	Devices     *auth.DeviceTokens
	Auth        *auth.Authenticator
	Idempotency idempotency.Store
	Services    Services

	origin  string
	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

type options struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	build   services.BuildInfo
	clock   func() time.Time
}

// Option customises container construction.
type Option func(*options)

// WithLogger sets the root logger. Components receive named children.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics shares a metrics registry with the container.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(o *options) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithBuildInfo sets the build metadata reported by health endpoints.
func WithBuildInfo(build services.BuildInfo) Option {
	return func(o *options) {
		o.build = build
	}
}

// WithClock overrides the time source handed to services.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies for the configured backends. Anything
// opened before a failure is closed before the error is returned.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics()
	}

	c := &Container{
		Config:  cfg,
		Logger:  o.logger,
		Metrics: o.metrics,
		origin:  strings.ToLower(ulid.Make().String()),
	}
	if err := c.build(ctx, o); err != nil {
		if closeErr := c.closeResources(); closeErr != nil {
			o.logger.Warn("failed to release partially built container", zap.Error(closeErr))
		}
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, o options) error {
	cfg := c.Config
	events := observability.EventLogger(c.Logger.Named("services"))

	c.Localizer = services.NewLocalizer(cfg.Locale)
	c.Formatter = services.NewPriceFormatter(c.Localizer)

	catalogRepo, err := catalog.NewFromFile(cfg.Catalog.File, catalog.WithLogger(c.Logger.Named("catalog")))
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	c.Catalog = catalogRepo

	var provider *pfirestore.Provider
	if useFirestore(cfg) {
		provider = pfirestore.NewProvider(cfg.Firestore)
		c.addCloser("firestore", provider.Close)
	}

	kv, err := c.cartBackend(ctx, cfg, provider)
	if err != nil {
		return err
	}

	var relay services.CartRelay
	var nc *nats.Conn
	if url := strings.TrimSpace(cfg.Messaging.NATSURL); url != "" {
		nc, err = messaging.Connect(ctx, url, "storefront-"+c.origin)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		natsRelay, err := messaging.NewNATSRelay(nc, cfg.Messaging.NATSSubject, c.origin, c.Logger)
		if err != nil {
			nc.Close()
			return fmt.Errorf("build nats relay: %w", err)
		}
		relay = natsRelay
		c.addCloser("nats", func() error {
			nc.Close()
			return nil
		})
	}

	broadcasterOpts := []services.CartBroadcasterOption{
		services.WithBroadcasterMetrics(c.Metrics),
		services.WithBroadcasterLogger(events),
	}
	if relay != nil {
		broadcasterOpts = append(broadcasterOpts, services.WithCartRelay(relay))
	}
	c.Broadcaster = services.NewCartBroadcaster(broadcasterOpts...)

	c.Carts, err = services.NewCartStore(services.CartStoreDeps{
		Store:     kv,
		Key:       cfg.Cart.Key,
		Publisher: c.Broadcaster,
		Metrics:   c.Metrics,
		Clock:     o.clock,
		Logger:    events,
		Origin:    c.origin,
	})
	if err != nil {
		return err
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog:   c.Catalog,
		Formatter: c.Formatter,
		Logger:    events,
	})
	if err != nil {
		return err
	}
	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Store:       c.Carts,
		Catalog:     catalogSvc,
		Subscribers: c.Broadcaster,
		Metrics:     c.Metrics,
		Logger:      events,
	})
	if err != nil {
		return err
	}

	var checkouts repositories.CheckoutRepository
	var users repositories.UserRepository
	if provider != nil {
		if checkouts, err = firestorerepo.NewCheckoutRepository(provider, cfg.Checkout.Collection); err != nil {
			return err
		}
		if users, err = firestorerepo.NewUserRepository(provider, cfg.Firebase.UsersCollection); err != nil {
			return err
		}
		c.Idempotency = idempotency.NewFirestoreStore(provider, cfg.Idempotency.Collection)
	} else {
		checkouts = memory.NewCheckoutRepository()
		users = memory.NewUserRepository()
		c.Idempotency = idempotency.NewMemoryStore()
	}

	publisher, err := c.checkoutPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	checkoutDeps := services.CheckoutServiceDeps{
		Carts:           c.Carts,
		Checkouts:       checkouts,
		Localizer:       c.Localizer,
		ErrorClearDelay: cfg.Checkout.ErrorClearDelay,
		Clock:           o.clock,
		Metrics:         c.Metrics,
		Logger:          events,
	}
	if publisher != nil {
		checkoutDeps.Publisher = publisher
	}
	checkoutSvc, err := services.NewCheckoutService(checkoutDeps)
	if err != nil {
		return err
	}

	accountSvc, err := c.accounts(ctx, cfg, users, o.clock, events)
	if err != nil {
		return err
	}

	c.Devices, err = deviceTokens(cfg.Device, c.Logger)
	if err != nil {
		return err
	}

	checks := []repositories.DependencyCheck{{
		Name: "cart_store",
		Check: func(ctx context.Context) error {
			_, err := kv.Get(ctx, healthProbeNamespace, c.Carts.Key())
			if err == nil || errors.Is(err, repositories.ErrKeyNotFound) {
				return nil
			}
			return err
		},
	}}
	if provider != nil {
		checks = append(checks, repositories.DependencyCheck{Name: "firestore", Check: provider.Ping})
	}
	if nc != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if status := nc.Status(); status != nats.CONNECTED {
					return fmt.Errorf("connection %s", status)
				}
				return nil
			},
		})
	}
	healthRepo, err := repositories.NewDependencyHealthRepository(checks, repositories.WithDependencyClock(o.clock))
	if err != nil {
		return err
	}
	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Catalog:          catalogSvc,
		Clock:            o.clock,
		Build:            o.build,
	})
	if err != nil {
		return err
	}

	c.Services = Services{
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		Checkout: checkoutSvc,
		Account:  accountSvc,
		System:   systemSvc,
	}
	return nil
}

func useFirestore(cfg config.Config) bool {
	if cfg.Cart.Backend == config.CartBackendMemory {
		return false
	}
	return cfg.Cart.Backend == config.CartBackendFirestore || strings.TrimSpace(cfg.Firestore.ProjectID) != ""
}

func (c *Container) cartBackend(ctx context.Context, cfg config.Config, provider *pfirestore.Provider) (repositories.KeyValueStore, error) {
	switch cfg.Cart.Backend {
	case config.CartBackendFirestore:
		if provider == nil {
			return nil, errors.New("firestore cart backend requires a firestore project")
		}
		return firestorerepo.NewKeyValueStore(provider, cfg.Cart.Collection)
	case config.CartBackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		c.addCloser("storage", client.Close)
		bucket, err := storage.NewBucket(client, cfg.Cart.Bucket)
		if err != nil {
			return nil, err
		}
		return blob.NewKeyValueStore(bucket, cfg.Cart.ObjectPrefix)
	case config.CartBackendMemory:
		return memory.NewKeyValueStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cart backend %q", cfg.Cart.Backend)
	}
}

func (c *Container) checkoutPublisher(ctx context.Context, cfg config.Config) (*messaging.PubSubCheckoutPublisher, error) {
	topicName := strings.TrimSpace(cfg.Checkout.Topic)
	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	if topicName == "" || projectID == "" || cfg.Cart.Backend == config.CartBackendMemory {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	c.addCloser("pubsub", func() error {
		topic.Stop()
		return client.Close()
	})
	return messaging.NewPubSubCheckoutPublisher(topic)
}

func (c *Container) accounts(ctx context.Context, cfg config.Config, users repositories.UserRepository, clock func() time.Time, events services.EventLogger) (services.AccountService, error) {
	if strings.TrimSpace(cfg.Firebase.ProjectID) == "" || cfg.Cart.Backend == config.CartBackendMemory {
		c.Logger.Info("firebase not configured; account routes disabled")
		return nil, nil
	}
	firebaseClient, err := auth.NewFirebaseClient(ctx, cfg.Firebase)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase: %w", err)
	}
	c.Auth = auth.NewAuthenticator(firebaseClient)

	if strings.TrimSpace(cfg.Firebase.WebAPIKey) == "" {
		c.Logger.Warn("firebase web api key missing; login and password reset disabled")
		return nil, nil
	}
	passwords, err := auth.NewPasswordClient(ctx, cfg.Firebase.WebAPIKey)
	if err != nil {
		return nil, fmt.Errorf("initialise identity toolkit: %w", err)
	}
	return services.NewAccountService(services.AccountServiceDeps{
		Passwords: passwords,
		Admin:     firebaseClient,
		Users:     users,
		Localizer: c.Localizer,
		Clock:     clock,
		Logger:    events,
	})
}

// deviceTokens builds the signer. Local runs without a configured secret get a random
// per-process secret, so tokens do not survive a restart.
func deviceTokens(cfg config.DeviceConfig, logger *zap.Logger) (*auth.DeviceTokens, error) {
	secret := strings.TrimSpace(cfg.TokenSecret)
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate device token secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("device token secret not configured; using an ephemeral secret")
	}
	return auth.NewDeviceTokens(secret, cfg.TokenIssuer, cfg.TokenTTL)
}

func (c *Container) addCloser(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Origin identifies this process on cart change events.
func (c *Container) Origin() string {
	return c.origin
}

// Start launches background work: the cross-instance relay subscription and, when enabled,
// the catalog file watcher. Both stop when ctx is cancelled or the container is closed.
func (c *Container) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.Broadcaster.Start(); err != nil {
		return fmt.Errorf("start cart broadcaster: %w", err)
	}
	if c.Config.Catalog.Watch && strings.TrimSpace(c.Config.Catalog.File) != "" {
		if err := c.Catalog.Watch(ctx); err != nil {
			return fmt.Errorf("watch catalog: %w", err)
		}
	}
	return nil
}

// Close releases background workers and client connections in reverse order of creation.
func (c *Container) Close(_ context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Broadcaster != nil {
		if err := c.Broadcaster.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cart broadcaster: %w", err))
		}
	}
	if err := c.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Container) closeResources() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
