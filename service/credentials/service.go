package credentials

import (
	"context"

	"github.com/beldeveloper/deploy-lego/model"
)

// Resolver defines the interface of the service that supplies the secret
// material for a backend kind. The orchestrator never discovers credentials
// itself; it only consumes a bundle resolved for a single call.
type Resolver interface {
	Resolve(ctx context.Context, kind string) (model.CredentialBundle, error)
}
