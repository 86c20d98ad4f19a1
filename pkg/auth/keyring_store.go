package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "threadsrecon"
	keyringPrefix  = "instagram_"
	keyringIndex   = "threadsrecon_index"
)

// KeyringStore uses the system keychain for credential storage
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store.
// Returns an error when no system keychain is available.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := keyringPrefix + "availability_test"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, testKey)
	return &KeyringStore{}, nil
}

// Store saves an account to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	key := keyringPrefix + account.Username
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.addToIndex(account.Username)
}

// Retrieve gets an account from the system keychain
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	key := keyringPrefix + username
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns all accounts recorded in the keyring index
func (k *KeyringStore) List() ([]*Account, error) {
	usernames, err := k.getIndex()
	if err != nil {
		return nil, err
	}

	var accounts []*Account
	for _, username := range usernames {
		account, err := k.Retrieve(username)
		if err != nil {
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes an account from the system keychain
func (k *KeyringStore) Delete(username string) error {
	key := keyringPrefix + username
	if err := keyring.Delete(keyringService, key); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.removeFromIndex(username)
}

// Exists checks whether an account is present
func (k *KeyringStore) Exists(username string) bool {
	_, err := keyring.Get(keyringService, keyringPrefix+username)
	return err == nil
}

func (k *KeyringStore) getIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	return strings.Split(data, ","), nil
}

func (k *KeyringStore) addToIndex(username string) error {
	usernames, err := k.getIndex()
	if err != nil {
		return err
	}
	for _, u := range usernames {
		if u == username {
			return nil
		}
	}
	usernames = append(usernames, username)
	return keyring.Set(keyringService, keyringIndex, strings.Join(usernames, ","))
}

func (k *KeyringStore) removeFromIndex(username string) error {
	usernames, err := k.getIndex()
	if err != nil {
		return err
	}
	var remaining []string
	for _, u := range usernames {
		if u != username {
			remaining = append(remaining, u)
		}
	}
	return keyring.Set(keyringService, keyringIndex, strings.Join(remaining, ","))
}
