// Package bastion is a session-based identity core: opaque session
// credentials, multi-provider account linking, a time-based second
// factor, and a request gate, over pluggable storage and HTTP adapters.
package bastion

import (
	"fmt"
	"time"

	"github.com/bastion-dev/bastion/core"
	"github.com/bastion-dev/bastion/gate"
	"github.com/bastion-dev/bastion/pkg/cache"
	"github.com/bastion-dev/bastion/pkg/crypto"
	"github.com/bastion-dev/bastion/providers"
	"github.com/bastion-dev/bastion/services"
)

// interfaces
type (
	StorageAdapter = core.StorageAdapter
	Cache          = core.Cache
	ProviderClient = core.ProviderClient

	PasswordHandler = crypto.PasswordHandler
)

// HTTPAdapter registers the HTTP surface against a concrete framework.
// BuildProtectedMiddleware returns a framework-native middleware so
// applications can guard their own routes; the concrete type depends on
// the adapter (a fiber.Handler for the Fiber adapter).
type HTTPAdapter interface {
	RegisterRoutes(b *Bastion) error
	BuildProtectedMiddleware(b *Bastion) interface{}
}

// structs
type (
	SessionConfig = core.SessionConfig
	CacheConfig   = core.CacheConfig
	GateConfig    = gate.Config
)

type (
	User                = core.User
	Account             = core.Account
	Session             = core.Session
	SessionData         = core.SessionData
	SessionSummary      = core.SessionSummary
	TwoFactorCredential = core.TwoFactorCredential
	TwoFactorState      = core.TwoFactorState
	ProviderProfile     = core.ProviderProfile
	CacheStats          = core.CacheStats

	SignUpInput  = services.SignUpInput
	SignUpResult = services.SignUpResult
	SignInInput  = services.SignInInput
	SignInResult = services.SignInResult
	LinkResult   = services.LinkResult
)

const (
	defaultBasePath  = "/api/auth"
	defaultSecretLen = 32
	defaultIssuer    = "bastion"
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache     = cache.NewInMemoryCache
	NewRedisCache        = cache.NewRedisCache
	NewArgon2            = crypto.NewArgon2
	DefaultTOTP          = crypto.DefaultTOTP
	DefaultSessionConfig = core.DefaultSessionConfig
	DefaultProviders     = providers.DefaultRegistry
	LoadProviderConfig   = providers.LoadConfigFromEnv
)

var (
	ErrUserExists         = core.ErrUserExists
	ErrUserNotFound       = core.ErrUserNotFound
	ErrInvalidCredentials = core.ErrInvalidCredentials
)

var (
	ErrMissingAuthHeader          = core.ErrMissingAuthHeader
	ErrInvalidToken               = core.ErrInvalidToken
	ErrSessionNotFound            = core.ErrSessionNotFound
	ErrSessionExpired             = core.ErrSessionExpired
	ErrForbidden                  = core.ErrForbidden
	ErrCannotRevokeCurrentSession = core.ErrCannotRevokeCurrentSession
	ErrCacheNotFound              = core.ErrCacheNotFound
)

var (
	ErrUnknownProvider           = core.ErrUnknownProvider
	ErrInvalidProviderToken      = core.ErrInvalidProviderToken
	ErrIncompleteProviderProfile = core.ErrIncompleteProviderProfile
	ErrAccountAlreadyLinked      = core.ErrAccountAlreadyLinked
)

var (
	ErrTwoFactorRequired   = core.ErrTwoFactorRequired
	ErrInvalidCode         = core.ErrInvalidCode
	ErrTwoFactorNotPending = core.ErrTwoFactorNotPending
	ErrTwoFactorNotEnabled = core.ErrTwoFactorNotEnabled
)

var (
	ErrRateLimitExceeded = core.ErrRateLimitExceeded
	ErrUserAgentBlocked  = core.ErrUserAgentBlocked
	ErrOriginNotAllowed  = core.ErrOriginNotAllowed
)

var (
	ErrInvalidAuthHeader = core.ErrInvalidAuthHeader
	ErrEmailRequired     = core.ErrEmailRequired
	ErrPasswordRequired  = core.ErrPasswordRequired
	ErrPasswordTooShort  = core.ErrPasswordTooShort
	ErrPasswordTooLong   = core.ErrPasswordTooLong
	ErrInvalidEmail      = core.ErrInvalidEmail
)

var (
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrSecretRequired      = core.ErrSecretRequired
	ErrSecretTooShort      = core.ErrSecretTooShort
)

type Config struct {
	Secret string

	Database core.StorageAdapter

	HTTP HTTPAdapter

	// Providers resolves OAuth provider tags; when nil the built-in
	// registry is loaded from the environment.
	Providers services.ProviderResolver

	// Optional config
	CacheAdapter   core.Cache
	DisableCache   bool
	SessionConfig  *core.SessionConfig
	PasswordHasher crypto.PasswordHandler
	TOTP           *crypto.TOTP
	Gate           *gate.Gate
	DisableGate    bool
	RateLimitStore gate.BucketStore
	GateConfig     *gate.Config
	BasePath       string
}

// Bastion aggregates the wired services; HTTP adapters drive it.
type Bastion struct {
	Sessions  *services.SessionManager
	Auth      *services.AuthService
	Linker    *services.AccountLinker
	TwoFactor *services.TwoFactorController
	Gate      *gate.Gate
	Secret    string
	BasePath  string

	// Protected is the adapter-native middleware guarding application
	// routes. Assert it to the adapter's handler type before use.
	Protected interface{}
}

func New(config Config) (*Bastion, error) {
	if config.Secret == "" {
		return nil, ErrSecretRequired
	}
	if len(config.Secret) < defaultSecretLen {
		return nil, fmt.Errorf("%w - minimum of %d characters", ErrSecretTooShort, defaultSecretLen)
	}
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = cache.NewInMemoryCache(core.CacheConfig{
			TTL:     5 * time.Minute,
			MaxSize: 500,
		})
	}

	sessionConfig := config.SessionConfig
	if sessionConfig == nil {
		sc := core.DefaultSessionConfig()
		sessionConfig = &sc
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	totp := config.TOTP
	if totp == nil {
		totp = crypto.DefaultTOTP(defaultIssuer)
	}

	providerResolver := config.Providers
	if providerResolver == nil {
		providerResolver = providers.DefaultRegistry(providers.LoadConfigFromEnv())
	}

	requestGate := config.Gate
	if requestGate == nil && !config.DisableGate {
		gateConfig := gate.Config{}
		if config.GateConfig != nil {
			gateConfig = *config.GateConfig
		}
		requestGate = gate.New(gateConfig, config.RateLimitStore)
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	sessionManager := services.NewSessionManager(*sessionConfig, config.Database, config.Database, cacheAdapter)
	twoFactor := services.NewTwoFactorController(config.Database, totp)

	b := &Bastion{
		Sessions:  sessionManager,
		Auth:      services.NewAuthService(config.Database, passwordHasher, sessionManager, twoFactor),
		Linker:    services.NewAccountLinker(config.Database, providerResolver, sessionManager),
		TwoFactor: twoFactor,
		Gate:      requestGate,
		Secret:    config.Secret,
		BasePath:  basePath,
	}

	if err := config.HTTP.RegisterRoutes(b); err != nil {
		return nil, err
	}
	b.Protected = config.HTTP.BuildProtectedMiddleware(b)

	return b, nil
}
