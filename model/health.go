package model

// HealthState represents the last observed health of a deployment.
type HealthState string

const (
	// HealthHealthy defines the state that means the deployment serves as expected.
	HealthHealthy HealthState = "healthy"
	// HealthDegraded defines the state that means the deployment is present but not fully operational.
	HealthDegraded HealthState = "degraded"
	// HealthUnreachable defines the state that means the remote platform does not report the deployment.
	HealthUnreachable HealthState = "unreachable"
	// HealthTornDown defines the state that is reported for the deployments that were torn down.
	HealthTornDown HealthState = "torn_down"
	// HealthUnknown defines the state that means the health was never observed.
	HealthUnknown HealthState = "unknown"
)
