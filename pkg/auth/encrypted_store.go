package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// EncryptedFileStore keeps credentials in an AES-GCM encrypted file.
// The key is derived from a passphrase with PBKDF2.
type EncryptedFileStore struct {
	filePath   string
	passphrase []byte
}

// NewEncryptedFileStore creates an encrypted file store at the given path
func NewEncryptedFileStore(filePath string) (*EncryptedFileStore, error) {
	passphrase, err := getPassphrase(filepath.Dir(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return &EncryptedFileStore{
		filePath:   filePath,
		passphrase: passphrase,
	}, nil
}

// Store saves an account to the encrypted file
func (e *EncryptedFileStore) Store(account *Account) error {
	accounts, err := e.loadAccounts()
	if err != nil {
		accounts = make(map[string]*Account)
	}

	accounts[account.Username] = account
	return e.saveAccounts(accounts)
}

// Retrieve gets an account from the encrypted file
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	accounts, err := e.loadAccounts()
	if err != nil {
		return nil, err
	}

	account, ok := accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

// List returns all accounts in the encrypted file
func (e *EncryptedFileStore) List() ([]*Account, error) {
	accounts, err := e.loadAccounts()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var result []*Account
	for _, account := range accounts {
		result = append(result, account)
	}
	return result, nil
}

// Delete removes an account from the encrypted file
func (e *EncryptedFileStore) Delete(username string) error {
	accounts, err := e.loadAccounts()
	if err != nil {
		return err
	}

	if _, ok := accounts[username]; !ok {
		return ErrCredentialsNotFound
	}

	delete(accounts, username)
	return e.saveAccounts(accounts)
}

// Exists checks whether an account is present
func (e *EncryptedFileStore) Exists(username string) bool {
	accounts, err := e.loadAccounts()
	if err != nil {
		return false
	}
	_, ok := accounts[username]
	return ok
}

func (e *EncryptedFileStore) loadAccounts() (map[string]*Account, error) {
	data, err := os.ReadFile(e.filePath)
	if err != nil {
		return nil, err
	}

	decrypted, err := e.decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var accounts map[string]*Account
	if err := json.Unmarshal(decrypted, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return accounts, nil
}

func (e *EncryptedFileStore) saveAccounts(accounts map[string]*Account) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	encrypted, err := e.encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	tmpPath := e.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmpPath, e.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save credentials file: %w", err)
	}
	return nil
}

// encrypt produces salt || nonce || ciphertext
func (e *EncryptedFileStore) encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, ciphertext...)
	return result, nil
}

func (e *EncryptedFileStore) decrypt(data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, ErrInvalidCredentials
	}

	salt := data[:saltSize]
	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(data) < saltSize+gcm.NonceSize() {
		return nil, ErrInvalidCredentials
	}

	nonce := data[saltSize : saltSize+gcm.NonceSize()]
	ciphertext := data[saltSize+gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return plaintext, nil
}

// getPassphrase resolves the encryption passphrase: environment
// variable first, then a passphrase file, generating one when neither
// exists.
func getPassphrase(configDir string) ([]byte, error) {
	if passphrase := os.Getenv("THREADSRECON_PASSPHRASE"); passphrase != "" {
		return []byte(passphrase), nil
	}

	passphrasePath := filepath.Join(configDir, ".passphrase")
	if data, err := os.ReadFile(passphrasePath); err == nil && len(data) > 0 {
		return data, nil
	}

	generated := make([]byte, 32)
	if _, err := rand.Read(generated); err != nil {
		return nil, err
	}
	encoded := []byte(base64.StdEncoding.EncodeToString(generated))

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(passphrasePath, encoded, 0600); err != nil {
		return nil, err
	}
	return encoded, nil
}
