package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/go-playground/validator/v10"
)

// requiredParams lists the target parameters that must be present before any
// remote call is attempted.
var requiredParams = map[string][]string{
	model.TargetKindPaaS:        {"api_url"},
	model.TargetKindObjectStore: {"bucket", "region"},
	model.TargetKindGitHost:     {"url"},
	model.TargetKindDockerHost:  nil,
}

// NewValidation creates a new instance of the validation service.
func NewValidation() Validation {
	return Validation{validate: validator.New()}
}

// Validation implements the validation service.
type Validation struct {
	validate *validator.Validate
}

// Deploy validates the input for the deploy request.
func (v Validation) Deploy(ctx context.Context, f model.FormDeploy) (model.FormDeploy, error) {
	f.Target.Kind = strings.TrimSpace(f.Target.Kind)
	f.Target.Name = strings.TrimSpace(f.Target.Name)
	f.Artifact.ID = strings.TrimSpace(f.Artifact.ID)
	f.Artifact.Fingerprint = strings.TrimSpace(f.Artifact.Fingerprint)
	if err := v.validate.StructCtx(ctx, f.Target); err != nil {
		return f, fmt.Errorf("%w: %s", model.ErrBadInput, err)
	}
	if f.Artifact.ID == "" {
		return f, fmt.Errorf("%w: artifact id must not be empty", model.ErrBadInput)
	}
	if f.Artifact.Fingerprint == "" {
		return f, fmt.Errorf("%w: artifact fingerprint must not be empty", model.ErrBadInput)
	}
	params, ok := requiredParams[f.Target.Kind]
	if !ok {
		return f, fmt.Errorf("%w: %s", model.ErrUnknownKind, f.Target.Kind)
	}
	for _, p := range params {
		if f.Target.Param(p) == "" {
			return f, fmt.Errorf("%w: target parameter %q is required for kind %s", model.ErrBadInput, p, f.Target.Kind)
		}
	}
	return f, nil
}
