package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from environment variables.
// It is read-only; Store and Delete always fail.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-variable-backed store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve reads INSTAGRAM_USERNAME and INSTAGRAM_PASSWORD. An empty
// username matches whatever the environment provides.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUsername := os.Getenv("INSTAGRAM_USERNAME")
	envPassword := os.Getenv("INSTAGRAM_PASSWORD")

	if envUsername == "" || envPassword == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUsername {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     envUsername,
		Password:     envPassword,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account when one is configured
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks whether the environment provides this account
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
