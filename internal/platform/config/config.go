package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultRequestTimeout     = 20 * time.Second
	defaultCartBackend        = CartBackendFirestore
	defaultCartCollection     = "devices"
	defaultCartObjectPrefix   = "carts"
	defaultCartKey            = "carrito"
	defaultErrorClearDelay    = 7 * time.Second
	defaultCheckoutCollection = "checkouts"
	defaultUsersCollection    = "users"
	defaultDeviceTokenHeader  = "X-Device-Token"
	defaultDeviceTokenTTL     = 365 * 24 * time.Hour
	defaultDeviceTokenIssuer  = "storefront"
	defaultLocale             = "es-AR"
	defaultNATSSubject        = "storefront.cart.changed"
	defaultIdempotencyHeader  = "Idempotency-Key"
	defaultIdempotencyTTL     = 24 * time.Hour
	defaultIdempotencyColl    = "idempotencyKeys"
	defaultCatalogWatch       = false
	defaultEnvironment        = "local"
)

// Cart storage backends.
const (
	CartBackendFirestore = "firestore"
	CartBackendGCS       = "gcs"
	CartBackendMemory    = "memory"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Locale      string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Cart        CartConfig
	Catalog     CatalogConfig
	Checkout    CheckoutConfig
	Messaging   MessagingConfig
	Device      DeviceConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	WebAPIKey       string
	UsersCollection string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// CartConfig selects where device carts are persisted.
type CartConfig struct {
	Backend      string
	Collection   string
	Bucket       string
	ObjectPrefix string
	Key          string
}

// CatalogConfig points at an optional catalog override file.
type CatalogConfig struct {
	File  string
	Watch bool
}

// CheckoutConfig controls checkout submission behaviour.
type CheckoutConfig struct {
	ErrorClearDelay time.Duration
	Collection      string
	Topic           string
}

// MessagingConfig configures cross-instance cart change fan-out.
type MessagingConfig struct {
	NATSURL     string
	NATSSubject string
}

// DeviceConfig controls the signed device tokens that scope carts.
type DeviceConfig struct {
	TokenSecret string
	TokenHeader string
	TokenTTL    time.Duration
	TokenIssuer string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header     string
	TTL        time.Duration
	Collection string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "STOREFRONT_ENVIRONMENT", defaultEnvironment)),
		Locale:      stringWithDefault(lookup, "STOREFRONT_LOCALE", defaultLocale),
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "STOREFRONT_SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "STOREFRONT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "STOREFRONT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "STOREFRONT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "STOREFRONT_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "STOREFRONT_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "STOREFRONT_FIREBASE_CREDENTIALS_FILE", ""),
			WebAPIKey:       stringWithDefault(lookup, "STOREFRONT_FIREBASE_WEB_API_KEY", ""),
			UsersCollection: stringWithDefault(lookup, "STOREFRONT_FIREBASE_USERS_COLLECTION", defaultUsersCollection),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "STOREFRONT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "STOREFRONT_FIRESTORE_EMULATOR_HOST", ""),
		},
		Cart: CartConfig{
			Backend:      strings.ToLower(stringWithDefault(lookup, "STOREFRONT_CART_BACKEND", defaultCartBackend)),
			Collection:   stringWithDefault(lookup, "STOREFRONT_CART_COLLECTION", defaultCartCollection),
			Bucket:       stringWithDefault(lookup, "STOREFRONT_CART_BUCKET", ""),
			ObjectPrefix: stringWithDefault(lookup, "STOREFRONT_CART_OBJECT_PREFIX", defaultCartObjectPrefix),
			Key:          stringWithDefault(lookup, "STOREFRONT_CART_KEY", defaultCartKey),
		},
		Catalog: CatalogConfig{
			File:  stringWithDefault(lookup, "STOREFRONT_CATALOG_FILE", ""),
			Watch: boolWithDefault(lookup, "STOREFRONT_CATALOG_WATCH", defaultCatalogWatch),
		},
		Checkout: CheckoutConfig{
			ErrorClearDelay: durationWithDefault(lookup, "STOREFRONT_CHECKOUT_ERROR_CLEAR_DELAY", defaultErrorClearDelay),
			Collection:      stringWithDefault(lookup, "STOREFRONT_CHECKOUT_COLLECTION", defaultCheckoutCollection),
			Topic:           stringWithDefault(lookup, "STOREFRONT_CHECKOUT_TOPIC", ""),
		},
		Messaging: MessagingConfig{
			NATSURL:     stringWithDefault(lookup, "STOREFRONT_NATS_URL", ""),
			NATSSubject: stringWithDefault(lookup, "STOREFRONT_NATS_SUBJECT", defaultNATSSubject),
		},
		Device: DeviceConfig{
			TokenSecret: stringWithDefault(lookup, "STOREFRONT_DEVICE_TOKEN_SECRET", ""),
			TokenHeader: stringWithDefault(lookup, "STOREFRONT_DEVICE_TOKEN_HEADER", defaultDeviceTokenHeader),
			TokenTTL:    durationWithDefault(lookup, "STOREFRONT_DEVICE_TOKEN_TTL", defaultDeviceTokenTTL),
			TokenIssuer: stringWithDefault(lookup, "STOREFRONT_DEVICE_TOKEN_ISSUER", defaultDeviceTokenIssuer),
		},
		Idempotency: IdempotencyConfig{
			Header:     stringWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:        durationWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			Collection: stringWithDefault(lookup, "STOREFRONT_IDEMPOTENCY_COLLECTION", defaultIdempotencyColl),
		},
	}

	// Firestore project defaults to Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []*string{
		&cfg.Firebase.WebAPIKey,
		&cfg.Device.TokenSecret,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if strings.TrimSpace(cfg.Cart.Key) == "" {
		missing = append(missing, "Cart.Key")
	}
	switch cfg.Cart.Backend {
	case CartBackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
		if strings.TrimSpace(cfg.Cart.Collection) == "" {
			missing = append(missing, "Cart.Collection")
		}
	case CartBackendGCS:
		if strings.TrimSpace(cfg.Cart.Bucket) == "" {
			missing = append(missing, "Cart.Bucket")
		}
	case CartBackendMemory:
	default:
		missing = append(missing, "Cart.Backend")
	}
	if cfg.Checkout.ErrorClearDelay <= 0 {
		missing = append(missing, "Checkout.ErrorClearDelay")
	}
	if cfg.Environment != defaultEnvironment && strings.TrimSpace(cfg.Device.TokenSecret) == "" {
		missing = append(missing, "Device.TokenSecret")
	}
	if strings.TrimSpace(cfg.Device.TokenHeader) == "" {
		missing = append(missing, "Device.TokenHeader")
	}
	if cfg.Device.TokenTTL <= 0 {
		missing = append(missing, "Device.TokenTTL")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
