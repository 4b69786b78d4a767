package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed login, whatever the cause
var ErrInvalidCredentials = errors.New("invalid credentials")

// Account is an administrator allowed to use the admin API
type Account struct {
	Username     string
	Role         string
	PasswordHash []byte // bcrypt
}

// AccountStore holds administrator accounts in memory
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

// NewAccountStore creates an empty store
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*Account)}
}

// ParseAccounts reads a comma separated "name:role:bcrypt-hash" list
func ParseAccounts(spec string) (*AccountStore, error) {
	store := NewAccountStore()
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		// bcrypt hashes contain '$' but never ':'
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed admin account %q: want name:role:hash", parts[0])
		}
		if _, err := bcrypt.Cost([]byte(parts[2])); err != nil {
			return nil, fmt.Errorf("admin account %q: %w", parts[0], err)
		}
		store.Add(&Account{Username: parts[0], Role: parts[1], PasswordHash: []byte(parts[2])})
	}
	return store, nil
}

// Add stores or replaces an account
func (s *AccountStore) Add(a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a
}

// AddPassword hashes password with bcrypt and stores the account
func (s *AccountStore) AddPassword(username, role, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.Add(&Account{Username: username, Role: role, PasswordHash: hash})
	return nil
}

// Authenticate verifies credentials and returns the account
func (s *AccountStore) Authenticate(username, password string) (*Account, error) {
	s.mu.RLock()
	account, exists := s.accounts[username]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// Len returns the number of accounts
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
