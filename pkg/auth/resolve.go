package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	errs "github.com/nateesh/polygon-options-agg/pkg/errors"
)

// DefaultCredsFile is the plain JSON key file read as a last resort
const DefaultCredsFile = "creds.json"

// Source names where a resolved key came from
const (
	SourceConfig = "config"
	SourceCreds  = "creds.json"
)

// CredsFile reads {"api_key": "..."} from a JSON file. It is read-only.
type CredsFile struct {
	path string
}

func NewCredsFile(path string) *CredsFile {
	return &CredsFile{path: path}
}

// Key returns the key in the file; a missing file is ErrCredentialsNotFound
func (c *CredsFile) Key() (string, error) {
	content, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrCredentialsNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", c.path, err)
	}

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(content, &body); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", c.path, err)
	}
	if strings.TrimSpace(body.APIKey) == "" {
		return "", fmt.Errorf("%w: %s has no api_key", ErrCredentialsNotFound, c.path)
	}
	return strings.TrimSpace(body.APIKey), nil
}

// Resolver picks the API key for a run. A key already present in the
// configuration (flag, environment or file) wins; then stored credentials;
// then the creds file.
type Resolver struct {
	Manager   *Manager
	CredsFile *CredsFile
	Profile   string
}

// Resolve returns the key and where it came from
func (r *Resolver) Resolve(configured string) (string, string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, SourceConfig, nil
	}

	if r.Manager != nil {
		cred, store, err := r.Manager.Retrieve(r.Profile)
		if err == nil {
			return cred.APIKey, store, nil
		}
	}

	if r.CredsFile != nil {
		key, err := r.CredsFile.Key()
		if err == nil {
			return key, SourceCreds, nil
		}
		if !errors.Is(err, ErrCredentialsNotFound) {
			return "", "", err
		}
	}

	return "", "", errs.ErrMissingAPIKey
}
