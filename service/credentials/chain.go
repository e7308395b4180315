package credentials

import (
	"context"
	"errors"

	"github.com/beldeveloper/deploy-lego/model"
)

// NewChain creates a resolver that queries the sources in order and returns
// the first bundle that carries any secrets. An empty bundle is returned when
// no source knows the kind, since some backend kinds need no credentials.
func NewChain(sources ...Resolver) Chain {
	return Chain{sources: sources}
}

// Chain implements the credential resolver on top of an ordered list of sources.
type Chain struct {
	sources []Resolver
}

// Resolve returns the credential bundle for the specific backend kind.
func (c Chain) Resolve(ctx context.Context, kind string) (model.CredentialBundle, error) {
	for _, s := range c.sources {
		b, err := s.Resolve(ctx, kind)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return model.CredentialBundle{}, err
		}
		if len(b.Secrets) > 0 {
			return b, nil
		}
	}
	return model.CredentialBundle{Kind: kind, Secrets: map[string]string{}}, nil
}
