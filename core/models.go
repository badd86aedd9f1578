package core

import "time"

// Role is the coarse authorization tag carried on a User.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
	RoleSales Role = "sales"
)

// User represents a user account in the system
//
// This is the "identity" - who someone is
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Name          string    `json:"name"`
	Image         *string   `json:"image,omitempty"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Account represents an authentication method
//
// This is the "credential" - how someone proves who they are.
// The pair (ProviderID, AccountID) is unique system-wide: no two users
// may claim the same external identity.
type Account struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	ProviderID   string     `json:"providerId"` // "credential", "google", "github", "twitter"
	AccountID    string     `json:"accountId"`  // the provider's own subject identifier
	Type         string     `json:"type"`       // "credential" or "oauth"
	Password     *string    `json:"-"`          // Never expose in JSON
	AccessToken  *string    `json:"-"`          // Never expose in JSON
	RefreshToken *string    `json:"-"`          // Never expose in JSON
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

const (
	AccountTypeCredential = "credential"
	AccountTypeOAuth      = "oauth"

	// ProviderCredential tags the email/password account row.
	ProviderCredential = "credential"
)

// Session represents an active login session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TokenHash string    `json:"-"` // Never expose in JSON (security!)
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionData combines user and session info
// The model returned to clients
type SessionData struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

// SessionSummary is the row shown in an "active sessions" settings view.
// It never carries the token or its hash.
type SessionSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	IsCurrent bool      `json:"isCurrent"`
}

// CreateSessionResult carries a freshly issued session together with the
// raw token. The raw token is returned to the client exactly once; only
// its hash is stored.
type CreateSessionResult struct {
	Session *Session `json:"session"`
	Token   string   `json:"token"`
}

// SessionConfig configures session issuance.
type SessionConfig struct {
	MaxAge time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxAge: 30 * 24 * time.Hour,
	}
}

// TwoFactorState describes where a user's second factor sits in its
// lifecycle.
type TwoFactorState string

const (
	TwoFactorAbsent  TwoFactorState = "absent"
	TwoFactorPending TwoFactorState = "pending"
	TwoFactorEnabled TwoFactorState = "enabled"
)

// TwoFactorCredential holds a user's time-based one-time code secret.
// At most one row exists per user. PendingSecret holds a secret that was
// generated but not yet confirmed; an existing enabled Secret stays valid
// until a correct code promotes the pending one.
type TwoFactorCredential struct {
	UserID        string    `json:"userId"`
	Secret        string    `json:"-"`
	PendingSecret string    `json:"-"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// State derives the lifecycle state from the stored row.
func (c *TwoFactorCredential) State() TwoFactorState {
	switch {
	case c == nil:
		return TwoFactorAbsent
	case c.Enabled && c.Secret != "":
		return TwoFactorEnabled
	case c.PendingSecret != "":
		return TwoFactorPending
	default:
		return TwoFactorAbsent
	}
}

// ProviderProfile is the claim set obtained from an external identity
// provider's user-info endpoint in exchange for a bearer token.
type ProviderProfile struct {
	ProviderUserID string
	Email          string
	Name           string
	Username       string
	AvatarURL      string
}
