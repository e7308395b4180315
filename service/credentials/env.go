package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/beldeveloper/deploy-lego/model"
)

// EnvPrefix defines the prefix of the environment variables that hold the credentials.
const EnvPrefix = "DEPLOY_LEGO_CRED_"

// NewEnv creates a new instance of the credential resolver that reads the
// process environment. The variable DEPLOY_LEGO_CRED_<KIND>_<FIELD> becomes
// the secret <field> of the <kind> bundle.
func NewEnv() Env {
	return Env{}
}

// Env implements the credential resolver on top of environment variables.
type Env struct {
}

// Resolve returns the credential bundle for the specific backend kind.
func (e Env) Resolve(ctx context.Context, kind string) (model.CredentialBundle, error) {
	prefix := EnvPrefix + strings.ToUpper(kind) + "_"
	secrets := make(map[string]string)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(kv, prefix), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		secrets[strings.ToLower(parts[0])] = parts[1]
	}
	return model.CredentialBundle{Kind: kind, Secrets: secrets}, nil
}
