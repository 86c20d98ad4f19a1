package auth

import "sync"

// MemoryStore is an in-memory CredentialStore for tests. The Fail*
// fields inject errors so fallback behavior can be exercised without a
// real keyring.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account

	FailStore    error
	FailRetrieve error
	FailList     error
	FailDelete   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

// copyOf shields stored state from caller mutation.
func copyOf(account *Account) *Account {
	dup := *account
	return &dup
}

func (m *MemoryStore) Store(account *Account) error {
	if m.FailStore != nil {
		return m.FailStore
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = copyOf(account)
	return nil
}

func (m *MemoryStore) Retrieve(username string) (*Account, error) {
	if m.FailRetrieve != nil {
		return nil, m.FailRetrieve
	}
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return copyOf(account), nil
}

func (m *MemoryStore) List() ([]*Account, error) {
	if m.FailList != nil {
		return nil, m.FailList
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accounts = append(accounts, copyOf(account))
	}
	return accounts, nil
}

func (m *MemoryStore) Delete(username string) error {
	if m.FailDelete != nil {
		return m.FailDelete
	}
	if username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

func (m *MemoryStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[username]
	return ok
}

// Count reports how many accounts the store holds.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

// NewMemoryManager returns a Manager backed by a single MemoryStore,
// exposing the store for inspection.
func NewMemoryManager() (*Manager, *MemoryStore) {
	store := NewMemoryStore()
	return &Manager{stores: []CredentialStore{store}}, store
}

// NewManagerWithStores builds a Manager over an explicit store chain.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}
