package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultProfile is the profile used when none is named
const DefaultProfile = "default"

// Credential is a stored market-data API key
type Credential struct {
	Profile      string    `json:"profile"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving API keys
type CredentialStore interface {
	Store(cred *Credential) error
	Retrieve(profile string) (*Credential, error)
	List() ([]*Credential, error)
	Delete(profile string) error
	Exists(profile string) bool
	// Name identifies the store in status output
	Name() string
}

// Manager tries each store in order, writing to the first that accepts
type Manager struct {
	stores []CredentialStore
}

// NewManager builds the default chain: system keyring when available, then
// an encrypted file in configDir, then the environment.
func NewManager(configDir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over an explicit chain
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Stores returns the chain in lookup order
func (m *Manager) Stores() []CredentialStore {
	return m.stores
}

// Store saves a key in the first store that accepts it and returns that
// store's name.
func (m *Manager) Store(cred *Credential) (string, error) {
	if cred == nil || strings.TrimSpace(cred.APIKey) == "" {
		return "", ErrInvalidCredentials
	}
	if cred.Profile == "" {
		cred.Profile = DefaultProfile
	}
	cred.APIKey = strings.TrimSpace(cred.APIKey)
	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Retrieve returns the key from the first store that has the profile
func (m *Manager) Retrieve(profile string) (*Credential, string, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, store.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
}

// List merges every store, keeping the newest copy of each profile
func (m *Manager) List() ([]*Credential, error) {
	byProfile := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byProfile[cred.Profile]; !ok || cred.LastModified.After(existing.LastModified) {
				byProfile[cred.Profile] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range byProfile {
		result = append(result, cred)
	}
	return result, nil
}

// Delete removes a profile from every store that has it
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
}

// ConfigDir returns the per-user directory for credentials, creating it
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "polyagg")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "polyagg")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "polyagg")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "polyagg")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// MaskKey masks all but the first and last 4 characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
