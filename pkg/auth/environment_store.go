package auth

import (
	"os"
	"strings"
)

// APIKeyEnv is the environment variable holding the API key
const APIKeyEnv = "POLYAGG_API_KEY"

// EnvironmentStore reads the key from APIKeyEnv. It is read-only and only
// answers for the default profile.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" || (profile != "" && profile != DefaultProfile) {
		return nil, ErrCredentialsNotFound
	}
	return &Credential{Profile: DefaultProfile, APIKey: key}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultProfile)
	if err != nil {
		return nil, nil
	}
	return []*Credential{cred}, nil
}

func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(profile string) bool {
	_, err := e.Retrieve(profile)
	return err == nil
}
