package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/bastion-dev/bastion/core"
	"github.com/bastion-dev/bastion/pkg/crypto"
)

// SessionManager issues, resolves, lists and revokes opaque session
// credentials. Tokens are random 256-bit values; only their SHA-256
// hash is persisted, so the database never holds anything a reader
// could replay.
type SessionManager struct {
	config  core.SessionConfig
	storage core.SessionStorage
	users   core.UserStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	nanoid  *crypto.NanoIDGenerator
}

func NewSessionManager(config core.SessionConfig, storage core.SessionStorage, users core.UserStorage, cache core.Cache) *SessionManager {
	if config.MaxAge <= 0 {
		config = core.DefaultSessionConfig()
	}
	nanoid, _ := crypto.NewNanoID("")
	return &SessionManager{config: config, storage: storage, users: users, cache: cache, nanoid: nanoid}
}

// Create issues a session for userID with a fixed lifetime.
func (sm *SessionManager) Create(userID, ip, userAgent string) (*core.CreateSessionResult, error) {
	pair, err := crypto.GenerateHashedToken(crypto.DefaultTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	sessionID, err := sm.nanoid.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	session := &core.Session{
		ID:        sessionID,
		UserID:    userID,
		TokenHash: pair.Hash,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(sm.config.MaxAge),
	}

	if err := sm.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// We don't fail the request if caching fails
	if sm.cache != nil {
		_ = sm.cache.Set(pair.Hash, session)
	}

	return &core.CreateSessionResult{Session: session, Token: pair.Token}, nil
}

// Verify checks a raw token and returns its session while it is alive.
// Expired rows are deleted opportunistically.
func (sm *SessionManager) Verify(token string) (*core.Session, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if sm.cache != nil {
		if session, err := sm.cache.Get(tokenHash); err == nil && session != nil {
			if time.Now().After(session.ExpiresAt) {
				_ = sm.cache.Delete(tokenHash)
				_ = sm.storage.DeleteSessionByID(session.ID)
				return nil, core.ErrSessionExpired
			}
			return session, nil
		}
		// Cache miss - fall through to storage
	}

	session, err := sm.storage.GetSessionByHash(tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, core.ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		_ = sm.storage.DeleteSessionByID(session.ID)
		return nil, core.ErrSessionExpired
	}

	if sm.cache != nil {
		_ = sm.cache.Set(tokenHash, session)
	}

	return session, nil
}

// Resolve verifies the token and re-reads the owning user. The user
// record is always read fresh so a role change is visible on the next
// request, never stale inside the credential.
func (sm *SessionManager) Resolve(token string) (*core.SessionData, error) {
	session, err := sm.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := sm.users.GetUserByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &core.SessionData{User: user, Session: session}, nil
}

// ListForUser returns the user's sessions, most recent first.
func (sm *SessionManager) ListForUser(userID string) ([]*core.Session, error) {
	if userID == "" {
		return nil, core.ErrUserNotFound
	}
	return sm.storage.GetUserSessions(userID)
}

// Summaries builds the "active sessions" settings view, flagging the
// caller's own session.
func (sm *SessionManager) Summaries(userID, currentSessionID string) ([]*core.SessionSummary, error) {
	sessions, err := sm.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*core.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, &core.SessionSummary{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			IsCurrent: s.ID == currentSessionID,
		})
	}
	return summaries, nil
}

// Revoke deletes one of the requesting user's other sessions. The
// caller's own session can only be dropped through Destroy (sign-out);
// the UI disables the action for the current row, but the check is
// enforced here regardless.
func (sm *SessionManager) Revoke(sessionID, requestingUserID, currentSessionID string) error {
	if sessionID == "" {
		return core.ErrSessionNotFound
	}

	session, err := sm.storage.GetSessionByID(sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			return core.ErrSessionNotFound
		}
		return fmt.Errorf("failed to get session: %w", err)
	}

	if session.UserID != requestingUserID {
		return core.ErrForbidden
	}
	if session.ID == currentSessionID {
		return core.ErrCannotRevokeCurrentSession
	}

	if sm.cache != nil {
		_ = sm.cache.Delete(session.TokenHash)
	}
	return sm.storage.DeleteSessionByID(sessionID)
}

// Destroy drops the caller's own session (sign-out).
func (sm *SessionManager) Destroy(token string) error {
	if token == "" {
		return core.ErrInvalidToken
	}

	tokenHash := crypto.HashToken(token)

	if sm.cache != nil {
		_ = sm.cache.Delete(tokenHash)
	}

	return sm.storage.DeleteSessionByHash(tokenHash)
}

// DestroyAllUserSessions drops every session a user holds, e.g. after a
// password change.
func (sm *SessionManager) DestroyAllUserSessions(userID string) (int, error) {
	if userID == "" {
		return 0, core.ErrUserNotFound
	}

	count, err := sm.storage.DeleteUserSessions(userID)
	if err != nil {
		return 0, err
	}

	// Clearing the whole cache is the conservative option; fetching all
	// user sessions first would defeat the point of the cache.
	if sm.cache != nil && count > 0 {
		_ = sm.cache.Clear()
	}

	return count, nil
}

// SweepExpired removes expired rows. Storage hygiene only; expiry is
// already enforced lazily on Verify.
func (sm *SessionManager) SweepExpired() (int, error) {
	return sm.storage.DeleteExpiredSessions()
}
