package core

import (
	"context"
	"time"
)

// Storage ports. Implementations are assumed atomic at the single-row
// level; CreateAccount in particular must enforce the uniqueness of
// (ProviderID, AccountID) with a constraint, not a check-then-insert,
// and surface a violation as ErrAccountAlreadyLinked.

type SessionStorage interface {
	CreateSession(session *Session) error

	// Query methods
	GetSessionByHash(tokenHash string) (*Session, error)
	GetSessionByID(id string) (*Session, error)
	// GetUserSessions returns sessions most-recent-first by creation.
	GetUserSessions(userID string) ([]*Session, error)

	// Delete methods
	DeleteSessionByID(id string) error
	DeleteSessionByHash(tokenHash string) error
	DeleteUserSessions(userID string) (int, error)

	// Cleanup
	DeleteExpiredSessions() (int, error)
}

type UserStorage interface {
	CreateUser(u *User) error

	GetUserByID(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)

	UpdateUser(u *User) error
}

type AccountStorage interface {
	CreateAccount(a *Account) error

	GetAccountByProvider(providerID, accountID string) (*Account, error)
	GetAccountsByUser(userID string) ([]*Account, error)
	GetAccountByUserAndProvider(userID, providerID string) ([]*Account, error)

	UpdateAccount(a *Account) error
	DeleteAccount(id string) error
}

type TwoFactorStorage interface {
	// GetTwoFactor returns ErrTwoFactorNotEnrolled when no row exists.
	GetTwoFactor(userID string) (*TwoFactorCredential, error)
	// PutTwoFactor inserts or replaces the user's single credential row.
	PutTwoFactor(c *TwoFactorCredential) error
	DeleteTwoFactor(userID string) error
}

type StorageAdapter interface {
	UserStorage
	AccountStorage
	SessionStorage
	TwoFactorStorage
}

// Cache defines session caching operations
type Cache interface {
	Get(tokenHash string) (*Session, error)
	Set(tokenHash string, session *Session) error
	Delete(tokenHash string) error
	Clear() error
}

// CacheWithStats extends Cache with statistics tracking
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// ProviderClient resolves a bearer token into the provider's view of the
// user. One implementation exists per external identity provider.
type ProviderClient interface {
	ID() string
	UserInfo(ctx context.Context, accessToken string) (*ProviderProfile, error)
}
