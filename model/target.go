package model

const (
	// TargetKindPaaS defines the target kind for the PaaS backend.
	TargetKindPaaS = "paas"
	// TargetKindObjectStore defines the target kind for the object storage backend.
	TargetKindObjectStore = "objectstore"
	// TargetKindGitHost defines the target kind for the git-hosted backend.
	TargetKindGitHost = "githost"
	// TargetKindDockerHost defines the target kind for the local docker engine backend.
	TargetKindDockerHost = "dockerhost"
)

// TargetConfig is a model that describes a single remote deployment slot.
// It is immutable once a deployment starts.
type TargetConfig struct {
	Kind   string            `json:"kind" validate:"required"`
	Name   string            `json:"name" validate:"required"`
	Params map[string]string `json:"params"`
}

// Param returns the platform-specific parameter value by its name.
func (t TargetConfig) Param(name string) string {
	return t.Params[name]
}
