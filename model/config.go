package model

import "time"

const (
	// ConflictPolicyReject defines the policy that rejects an operation on a busy target slot.
	ConflictPolicyReject = "reject"
	// ConflictPolicyBlock defines the policy that blocks an operation until the target slot is free.
	ConflictPolicyBlock = "block"
)

// OrchestratorConfig keeps the tunables of the deployment sequence. The
// retry limits and the backoff curve are configuration, not constants.
type OrchestratorConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	StepTimeout    time.Duration
	ConflictPolicy string
}

// DefaultOrchestratorConfig returns the configuration used when nothing is
// set in the environment.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		StepTimeout:    2 * time.Minute,
		ConflictPolicy: ConflictPolicyReject,
	}
}

// PgSchema wraps the string for defining the Postgres schema name.
type PgSchema string
