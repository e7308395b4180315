package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/zalando/go-keyring"
)

// KeyringService defines the service name under which the bundles are stored
// in the OS keyring.
const KeyringService = "deploy-lego"

// NewKeyring creates a new instance of the credential resolver that reads
// the OS keyring. One keyring entry per backend kind, the value is the JSON
// encoded secrets map.
func NewKeyring() Keyring {
	return Keyring{}
}

// Keyring implements the credential resolver on top of the OS keyring.
type Keyring struct {
}

// Resolve returns the credential bundle for the specific backend kind.
func (k Keyring) Resolve(ctx context.Context, kind string) (model.CredentialBundle, error) {
	raw, err := keyring.Get(KeyringService, kind)
	if err != nil {
		if err == keyring.ErrNotFound {
			return model.CredentialBundle{}, fmt.Errorf("%w: no credentials stored for kind %s", model.ErrNotFound, kind)
		}
		return model.CredentialBundle{}, fmt.Errorf("service.credentials.keyring.Resolve: get: %w", err)
	}
	secrets := make(map[string]string)
	if err = json.Unmarshal([]byte(raw), &secrets); err != nil {
		return model.CredentialBundle{}, fmt.Errorf("service.credentials.keyring.Resolve: decode: %w", err)
	}
	return model.CredentialBundle{Kind: kind, Secrets: secrets}, nil
}

// Store saves the secrets for the specific backend kind to the OS keyring.
func (k Keyring) Store(ctx context.Context, kind string, secrets map[string]string) error {
	raw, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("service.credentials.keyring.Store: encode: %w", err)
	}
	if err = keyring.Set(KeyringService, kind, string(raw)); err != nil {
		return fmt.Errorf("service.credentials.keyring.Store: set: %w", err)
	}
	return nil
}
