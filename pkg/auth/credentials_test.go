package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
)

func TestManagerStoreRetrieveDelete(t *testing.T) {
	manager, store := NewMockManager()

	name, err := manager.Store(&Credential{APIKey: "  abcdef123456  "})
	require.NoError(t, err)
	assert.Equal(t, "mock", name)

	cred, source, err := manager.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, cred.Profile)
	assert.Equal(t, "abcdef123456", cred.APIKey)
	assert.Equal(t, "mock", source)
	assert.False(t, cred.LastModified.IsZero())

	creds, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	require.NoError(t, manager.Delete(DefaultProfile))
	assert.Equal(t, 0, store.Count())

	_, _, err = manager.Retrieve(DefaultProfile)
	assert.True(t, errors.Is(err, ErrCredentialsNotFound))
	assert.True(t, errors.Is(manager.Delete(DefaultProfile), ErrCredentialsNotFound))
}

func TestManagerRejectsEmptyKey(t *testing.T) {
	manager, _ := NewMockManager()
	_, err := manager.Store(&Credential{APIKey: "   "})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestManagerFallsThroughFailingStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("locked")
	working := NewMockStore()

	manager := NewManagerWithStores(broken, working)
	_, err := manager.Store(&Credential{APIKey: "key-1234567890"})
	require.NoError(t, err)
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "********", MaskKey("short"))
	assert.Equal(t, "abcd...6789", MaskKey("abcdef0123456789"))
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Profile: DefaultProfile, APIKey: "secret_api_key_value"}))
	assert.True(t, store.Exists(DefaultProfile))

	cred, err := store.Retrieve(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "secret_api_key_value", cred.APIKey)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secret_api_key_value")

	// a second store with the same passphrase reads the same file
	again, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	cred, err = again.Retrieve(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "secret_api_key_value", cred.APIKey)

	require.NoError(t, store.Delete(DefaultProfile))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Credential{Profile: DefaultProfile, APIKey: "k"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve(DefaultProfile)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredentialsNotFound))
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	_, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	assert.False(t, store.Exists(DefaultProfile))
	require.NoError(t, store.Store(&Credential{Profile: DefaultProfile, APIKey: "from-keyring"}))

	cred, err := store.Retrieve(DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cred.APIKey)

	creds, err := store.List()
	require.NoError(t, err)
	assert.Len(t, creds, 1)

	require.NoError(t, store.Delete(DefaultProfile))
	assert.ErrorIs(t, store.Delete(DefaultProfile), ErrCredentialsNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(APIKeyEnv, "env_key")
	store := NewEnvironmentStore()

	cred, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env_key", cred.APIKey)

	_, err = store.Retrieve("other")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Store(&Credential{}), ErrStoreUnavailable)
}

func TestCredsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultCredsFile)

	_, err := NewCredsFile(path).Key()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, os.WriteFile(path, []byte(`{"api_key": " file_key "}`), 0600))
	key, err := NewCredsFile(path).Key()
	require.NoError(t, err)
	assert.Equal(t, "file_key", key)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0600))
	_, err = NewCredsFile(path).Key()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredentialsNotFound))
}

func TestResolverOrder(t *testing.T) {
	dir := t.TempDir()
	credsPath := filepath.Join(dir, DefaultCredsFile)
	require.NoError(t, os.WriteFile(credsPath, []byte(`{"api_key": "from-creds"}`), 0600))

	manager, _ := NewMockManager()
	resolver := &Resolver{Manager: manager, CredsFile: NewCredsFile(credsPath)}

	key, source, err := resolver.Resolve("from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
	assert.Equal(t, SourceConfig, source)

	key, source, err = resolver.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "from-creds", key)
	assert.Equal(t, SourceCreds, source)

	_, err = manager.Store(&Credential{APIKey: "from-store"})
	require.NoError(t, err)
	key, source, err = resolver.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "from-store", key)
	assert.Equal(t, "mock", source)
}

func TestResolverMissingKey(t *testing.T) {
	resolver := &Resolver{CredsFile: NewCredsFile(filepath.Join(t.TempDir(), DefaultCredsFile))}
	_, _, err := resolver.Resolve(" ")
	assert.ErrorIs(t, err, errs.ErrMissingAPIKey)
}

func TestShowAPIKeyGuide(t *testing.T) {
	var b strings.Builder
	ShowAPIKeyGuide(&b)
	assert.Contains(t, b.String(), APIKeyEnv)
	assert.Contains(t, b.String(), DefaultCredsFile)
}
