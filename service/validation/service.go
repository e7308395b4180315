package validation

import (
	"context"

	"github.com/beldeveloper/deploy-lego/model"
)

// Service defines the interface of the validation service.
type Service interface {
	Deploy(ctx context.Context, f model.FormDeploy) (model.FormDeploy, error)
}
