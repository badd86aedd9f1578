package services

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/bastion-dev/bastion/core"
)

// FakeStorage is a test-only in-memory core.StorageAdapter. It mirrors
// the uniqueness guarantees the real adapter gets from the database:
// unique user emails and a unique (provider, providerAccountId) pair on
// accounts. Error fields allow behavior injection.
type FakeStorage struct {
	mu sync.RWMutex

	users     map[string]*core.User
	accounts  map[string]*core.Account
	sessions  map[string]*core.Session // keyed by token hash
	twoFactor map[string]*core.TwoFactorCredential

	nextID int

	CreateUserErr    error
	CreateSessionErr error
	GetSessionErr    error
	DeleteSessionErr error

	// BeforeCreateUser and BeforeCreateAccount run once, before the
	// corresponding insert takes the lock, so tests can land a
	// competing writer between a lookup miss and the write.
	BeforeCreateUser    func()
	BeforeCreateAccount func()
}

var _ core.StorageAdapter = (*FakeStorage)(nil)

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		users:     make(map[string]*core.User),
		accounts:  make(map[string]*core.Account),
		sessions:  make(map[string]*core.Session),
		twoFactor: make(map[string]*core.TwoFactorCredential),
	}
}

func (f *FakeStorage) genID() string {
	f.nextID++
	return "fake-" + strconv.Itoa(f.nextID)
}

// UserStorage

func (f *FakeStorage) CreateUser(u *core.User) error {
	if hook := f.BeforeCreateUser; hook != nil {
		f.BeforeCreateUser = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateUserErr != nil {
		return f.CreateUserErr
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return core.ErrUserExists
		}
	}
	if u.ID == "" {
		u.ID = f.genID()
	}
	f.users[u.ID] = u
	return nil
}

func (f *FakeStorage) GetUserByID(id string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	u, ok := f.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return u, nil
}

func (f *FakeStorage) GetUserByEmail(email string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (f *FakeStorage) UpdateUser(u *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return core.ErrUserNotFound
	}
	f.users[u.ID] = u
	return nil
}

// AccountStorage

func (f *FakeStorage) CreateAccount(a *core.Account) error {
	if hook := f.BeforeCreateAccount; hook != nil {
		f.BeforeCreateAccount = nil
		hook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.ProviderID == a.ProviderID && existing.AccountID == a.AccountID {
			return core.ErrAccountAlreadyLinked
		}
	}
	if a.ID == "" {
		a.ID = f.genID()
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *FakeStorage) GetAccountByProvider(providerID, accountID string) (*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, a := range f.accounts {
		if a.ProviderID == providerID && a.AccountID == accountID {
			return a, nil
		}
	}
	return nil, core.ErrAccountNotFound
}

func (f *FakeStorage) GetAccountsByUser(userID string) ([]*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*core.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *FakeStorage) GetAccountByUserAndProvider(userID, providerID string) ([]*core.Account, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*core.Account
	for _, a := range f.accounts {
		if a.UserID == userID && a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *FakeStorage) UpdateAccount(a *core.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[a.ID]; !ok {
		return core.ErrAccountNotFound
	}
	f.accounts[a.ID] = a
	return nil
}

func (f *FakeStorage) DeleteAccount(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
	return nil
}

// AccountCount reports stored accounts, for idempotence assertions.
func (f *FakeStorage) AccountCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.accounts)
}

// SessionStorage

func (f *FakeStorage) CreateSession(s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateSessionErr != nil {
		return f.CreateSessionErr
	}
	f.sessions[s.TokenHash] = s
	return nil
}

func (f *FakeStorage) GetSessionByHash(tokenHash string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.GetSessionErr != nil {
		return nil, f.GetSessionErr
	}
	s, ok := f.sessions[tokenHash]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return s, nil
}

func (f *FakeStorage) GetSessionByID(id string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (f *FakeStorage) GetUserSessions(userID string) ([]*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*core.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *FakeStorage) DeleteSessionByID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteSessionErr != nil {
		return f.DeleteSessionErr
	}
	for k, s := range f.sessions {
		if s.ID == id {
			delete(f.sessions, k)
			return nil
		}
	}
	return core.ErrSessionNotFound
}

func (f *FakeStorage) DeleteSessionByHash(tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteSessionErr != nil {
		return f.DeleteSessionErr
	}
	if _, ok := f.sessions[tokenHash]; !ok {
		return core.ErrSessionNotFound
	}
	delete(f.sessions, tokenHash)
	return nil
}

func (f *FakeStorage) DeleteUserSessions(userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for k, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, k)
			count++
		}
	}
	return count, nil
}

func (f *FakeStorage) DeleteExpiredSessions() (int, error) {
	return 0, nil
}

// TwoFactorStorage

func (f *FakeStorage) GetTwoFactor(userID string) (*core.TwoFactorCredential, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.twoFactor[userID]
	if !ok {
		return nil, core.ErrTwoFactorNotEnrolled
	}
	clone := *c
	return &clone, nil
}

func (f *FakeStorage) PutTwoFactor(c *core.TwoFactorCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *c
	f.twoFactor[c.UserID] = &clone
	return nil
}

func (f *FakeStorage) DeleteTwoFactor(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.twoFactor, userID)
	return nil
}

// fakeProviderClient is a canned core.ProviderClient for linker tests.
type fakeProviderClient struct {
	id      string
	profile *core.ProviderProfile
	err     error

	calls     int
	lastToken string
}

func (f *fakeProviderClient) ID() string { return f.id }

func (f *fakeProviderClient) UserInfo(_ context.Context, accessToken string) (*core.ProviderProfile, error) {
	f.calls++
	f.lastToken = accessToken
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.profile
	return &clone, nil
}

// fakeResolver implements ProviderResolver over a fixed client set.
type fakeResolver map[string]core.ProviderClient

func (r fakeResolver) Get(id string) (core.ProviderClient, error) {
	c, ok := r[id]
	if !ok {
		return nil, core.ErrUnknownProvider
	}
	return c, nil
}
