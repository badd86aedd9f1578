package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bastion-dev/bastion/core"
	"github.com/bastion-dev/bastion/pkg/crypto"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

// SignUpInput contains the data needed to register a new user
type SignUpInput struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Image    *string `json:"image,omitempty"`
}

// SignUpResult contains the newly created user and their first session
type SignUpResult struct {
	User    *core.User    `json:"user"`
	Session *core.Session `json:"session"`
	Token   string        `json:"token"` // The raw token (not the hash)
}

// SignInInput contains the credentials for authentication. Code carries
// the one-time code when the user's second factor is enabled.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

// SignInResult contains the authenticated user and their session
type SignInResult struct {
	User    *core.User    `json:"user"`
	Session *core.Session `json:"session"`
	Token   string        `json:"token"` // The raw token (not the hash)
}

// AuthService implements the password sign-up and sign-in flows,
// delegating second-factor checks to the TwoFactorController.
type AuthService struct {
	db             core.StorageAdapter
	passwordHasher crypto.PasswordHandler
	sessionManager *SessionManager
	twoFactor      *TwoFactorController
}

func NewAuthService(db core.StorageAdapter, passwordHasher crypto.PasswordHandler, sessionManager *SessionManager, twoFactor *TwoFactorController) *AuthService {
	return &AuthService{
		db:             db,
		passwordHasher: passwordHasher,
		sessionManager: sessionManager,
		twoFactor:      twoFactor,
	}
}

// SignUp registers a new user with email and password
func (s *AuthService) SignUp(input SignUpInput, ipAddress, userAgent string) (*SignUpResult, error) {
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	// Step 1: Check if user already exists
	existingUser, err := s.db.GetUserByEmail(input.Email)
	if err != nil && !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, core.ErrUserExists
	}

	// Step 2: Hash the password
	hashedPassword, err := s.passwordHasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Step 3: Create the user
	user := &core.User{
		Email:         input.Email,
		EmailVerified: false,
		Name:          input.Name,
		Image:         input.Image,
		Role:          core.RoleUser,
	}

	if err := s.db.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// Step 4: Create a credential account for this user
	account := &core.Account{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		ProviderID: core.ProviderCredential,
		AccountID:  user.ID, // For credential provider, account ID = user ID
		Type:       core.AccountTypeCredential,
		Password:   &hashedPassword,
	}

	if err := s.db.CreateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// Step 5: Create a session for the new user
	sessionResult, err := s.sessionManager.Create(user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SignUpResult{
		User:    user,
		Session: sessionResult.Session,
		Token:   sessionResult.Token,
	}, nil
}

// SignIn authenticates a user with email and password, demanding a
// one-time code when their second factor is enabled.
func (s *AuthService) SignIn(input SignInInput, ipAddress, userAgent string) (*SignInResult, error) {
	// Step 1: Find the user by email
	user, err := s.db.GetUserByEmail(input.Email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	// Step 2: Get the credential account for this user
	accounts, err := s.db.GetAccountByUserAndProvider(user.ID, core.ProviderCredential)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if len(accounts) == 0 {
		return nil, core.ErrInvalidCredentials
	}

	account := accounts[0]
	if account.Password == nil {
		return nil, core.ErrInvalidCredentials
	}

	// Step 3: Verify the password
	valid, err := s.passwordHasher.Verify(input.Password, *account.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}

	// Step 4: Second factor, when enabled. The password must check out
	// before the code is even looked at.
	if s.twoFactor != nil {
		enabled, err := s.twoFactor.Enabled(user.ID)
		if err != nil {
			return nil, err
		}
		if enabled {
			if input.Code == "" {
				return nil, core.ErrTwoFactorRequired
			}
			if err := s.twoFactor.Require(user.ID, input.Code); err != nil {
				return nil, err
			}
		}
	}

	// Step 5: Create a new session
	sessionResult, err := s.sessionManager.Create(user.ID, ipAddress, userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SignInResult{
		User:    user,
		Session: sessionResult.Session,
		Token:   sessionResult.Token,
	}, nil
}

// SignOut invalidates the current session
func (s *AuthService) SignOut(token string) error {
	if err := s.sessionManager.Destroy(token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// GetSession retrieves session data by token
func (s *AuthService) GetSession(token string) (*core.SessionData, error) {
	return s.sessionManager.Resolve(token)
}

func validateEmail(email string) error {
	if email == "" {
		return core.ErrEmailRequired
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return core.ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case password == "":
		return core.ErrPasswordRequired
	case len(password) < minPasswordLength:
		return core.ErrPasswordTooShort
	case len(password) > maxPasswordLength:
		return core.ErrPasswordTooLong
	}
	return nil
}
