package model

// CredentialBundle carries the secret material for one backend kind. It is
// scoped to a single deploy/teardown/status call and is never persisted.
type CredentialBundle struct {
	Kind    string
	Secrets map[string]string
}

// Secret returns the secret value by its name.
func (b CredentialBundle) Secret(name string) string {
	return b.Secrets[name]
}
