package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bastion-dev/bastion/core"
)

// ProviderResolver dispatches a provider tag to its user-info client.
// Satisfied by providers.Registry.
type ProviderResolver interface {
	Get(id string) (core.ProviderClient, error)
}

// AccountLinker resolves an inbound provider assertion into a user:
// repeat sign-in, first sign-up, or linking to an already-authenticated
// user. One entry point for every provider; the per-provider difference
// lives entirely in the ProviderClient implementations.
type AccountLinker struct {
	db        core.StorageAdapter
	providers ProviderResolver
	sessions  *SessionManager
}

// LinkResult carries the outcome of a provider assertion. Session and
// Token are set on sign-in and registration; pure linking of an
// already-authenticated user leaves them empty since the caller already
// holds a session.
type LinkResult struct {
	User    *core.User    `json:"user"`
	Session *core.Session `json:"session,omitempty"`
	Token   string        `json:"token,omitempty"`
	Created bool          `json:"created"` // a new user was registered
}

func NewAccountLinker(db core.StorageAdapter, providers ProviderResolver, sessions *SessionManager) *AccountLinker {
	return &AccountLinker{db: db, providers: providers, sessions: sessions}
}

// Link validates the assertion against the provider and walks the
// sign-in / sign-up / link state machine. current is the authenticated
// user when the request arrived with a valid session, else nil.
func (l *AccountLinker) Link(ctx context.Context, providerID, accessToken string, current *core.User, ip, userAgent string) (*LinkResult, error) {
	client, err := l.providers.Get(providerID)
	if err != nil {
		return nil, err
	}

	profile, err := client.UserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if profile.ProviderUserID == "" {
		return nil, core.ErrIncompleteProviderProfile
	}

	email := profile.Email
	if email == "" {
		email = placeholderEmail(providerID, profile)
	}
	if email == "" {
		return nil, core.ErrIncompleteProviderProfile
	}

	existing, err := l.db.GetAccountByProvider(providerID, profile.ProviderUserID)
	if err != nil && !errors.Is(err, core.ErrAccountNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if existing != nil {
		// The external identity is already bound somewhere.
		if current != nil && existing.UserID != current.ID {
			return nil, core.ErrAccountAlreadyLinked
		}
		return l.repeatSignIn(existing, accessToken, current, ip, userAgent)
	}

	if current != nil {
		// Linking: bind the identity to the authenticated user. No new
		// session; they already have one.
		if err := l.createAccount(current.ID, providerID, profile.ProviderUserID, accessToken); err != nil {
			if errors.Is(err, core.ErrAccountAlreadyLinked) {
				// Lost a race for the same identity. If we lost it to
				// ourselves, this is an idempotent success.
				return l.resolveRace(providerID, profile.ProviderUserID, accessToken, current, ip, userAgent)
			}
			return nil, err
		}
		return &LinkResult{User: current}, nil
	}

	// Sign-in-or-register: match by email first so a user who signed up
	// with a password and later arrives through a provider with the same
	// address is linked, not duplicated.
	user, err := l.db.GetUserByEmail(email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	created := false
	if user == nil {
		user = &core.User{
			Email:         email,
			EmailVerified: true, // provider identities are treated as pre-verified
			Name:          profile.Name,
			Role:          core.RoleUser,
		}
		if profile.AvatarURL != "" {
			avatar := profile.AvatarURL
			user.Image = &avatar
		}
		switch err := l.db.CreateUser(user); {
		case err == nil:
			created = true
		case errors.Is(err, core.ErrUserExists):
			// Lost a race with another first sign-in for the same
			// address; the winner's row is the user.
			user, err = l.db.GetUserByEmail(email)
			if err != nil {
				return nil, fmt.Errorf("failed to look up user: %w", err)
			}
		default:
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	if err := l.createAccount(user.ID, providerID, profile.ProviderUserID, accessToken); err != nil {
		if errors.Is(err, core.ErrAccountAlreadyLinked) {
			return l.resolveRace(providerID, profile.ProviderUserID, accessToken, nil, ip, userAgent)
		}
		return nil, err
	}

	sessionResult, err := l.sessions.Create(user.ID, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &LinkResult{
		User:    user,
		Session: sessionResult.Session,
		Token:   sessionResult.Token,
		Created: created,
	}, nil
}

// repeatSignIn refreshes the stored token and, unless the caller is
// only re-asserting an identity they already hold a session for, issues
// a fresh session. Never creates a second account row.
func (l *AccountLinker) repeatSignIn(account *core.Account, accessToken string, current *core.User, ip, userAgent string) (*LinkResult, error) {
	token := accessToken
	account.AccessToken = &token
	if err := l.db.UpdateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to refresh account token: %w", err)
	}

	user, err := l.db.GetUserByID(account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if current != nil {
		// Already authenticated as the owner; nothing to issue.
		return &LinkResult{User: user}, nil
	}

	sessionResult, err := l.sessions.Create(user.ID, ip, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &LinkResult{
		User:    user,
		Session: sessionResult.Session,
		Token:   sessionResult.Token,
	}, nil
}

// resolveRace handles losing a CreateAccount race: the unique
// constraint on (provider, providerAccountId) fired, so re-read the row
// the winner inserted and decide whether the loss is benign.
func (l *AccountLinker) resolveRace(providerID, providerUserID, accessToken string, current *core.User, ip, userAgent string) (*LinkResult, error) {
	winner, err := l.db.GetAccountByProvider(providerID, providerUserID)
	if err != nil || winner == nil {
		return nil, core.ErrAccountAlreadyLinked
	}
	if current != nil && winner.UserID != current.ID {
		return nil, core.ErrAccountAlreadyLinked
	}
	return l.repeatSignIn(winner, accessToken, current, ip, userAgent)
}

func (l *AccountLinker) createAccount(userID, providerID, providerUserID, accessToken string) error {
	token := accessToken
	account := &core.Account{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProviderID:  providerID,
		AccountID:   providerUserID,
		Type:        core.AccountTypeOAuth,
		AccessToken: &token,
	}
	if err := l.db.CreateAccount(account); err != nil {
		if errors.Is(err, core.ErrAccountAlreadyLinked) {
			return core.ErrAccountAlreadyLinked
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// placeholderEmail synthesizes a deterministic, namespaced address for
// providers that never supply one. The .invalid TLD is reserved, so the
// result can never collide with a deliverable address.
func placeholderEmail(providerID string, profile *core.ProviderProfile) string {
	handle := profile.Username
	if handle == "" {
		handle = profile.ProviderUserID
	}
	if handle == "" {
		return ""
	}
	return fmt.Sprintf("%s@users.%s.invalid", handle, providerID)
}
