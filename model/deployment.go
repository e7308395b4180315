package model

import "time"

const (
	// DeploymentStatusPending defines the status that means the deployment is recorded but not started.
	DeploymentStatusPending = "pending"
	// DeploymentStatusProvisioning defines the status that means the remote slot is being prepared.
	DeploymentStatusProvisioning = "provisioning"
	// DeploymentStatusUploading defines the status that means the artifact is being uploaded.
	DeploymentStatusUploading = "uploading"
	// DeploymentStatusActivating defines the status that means the uploaded artifact is being activated.
	DeploymentStatusActivating = "activating"
	// DeploymentStatusActive defines the status that means the deployment serves the artifact.
	DeploymentStatusActive = "active"
	// DeploymentStatusFailed defines the status that means the deployment failed permanently.
	DeploymentStatusFailed = "failed"
	// DeploymentStatusTornDown defines the status that means the deployment was explicitly torn down.
	DeploymentStatusTornDown = "torn_down"
)

// DeploymentRecord is a model that represents a single deployment of one
// artifact to one target slot. The (TargetKind, TargetName) pair is the
// natural key: at most one record per pair may be in a non-terminal state.
type DeploymentRecord struct {
	ID                  string             `json:"id"`
	TargetKind          string             `json:"targetKind"`
	TargetName          string             `json:"targetName"`
	TargetParams        map[string]string  `json:"targetParams"`
	ArtifactID          string             `json:"artifactId"`
	ArtifactURI         string             `json:"artifactUri"`
	ArtifactFingerprint string             `json:"artifactFingerprint"`
	Status              string             `json:"status"`
	LastError           string             `json:"lastError,omitempty"`
	Provision           ProvisionHandle    `json:"provision"`
	Upload              UploadHandle       `json:"upload"`
	Activation          ActivationInfo     `json:"activation"`
	LastHealth          HealthState        `json:"lastHealth,omitempty"`
	ObservedAt          *time.Time         `json:"observedAt,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
	Transitions         []StatusTransition `json:"transitions"`
}

// StatusTransition is a model that keeps the moment of a single status change.
type StatusTransition struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Target rebuilds the target configuration the deployment was requested with.
func (d DeploymentRecord) Target() TargetConfig {
	return TargetConfig{Kind: d.TargetKind, Name: d.TargetName, Params: d.TargetParams}
}

// Artifact rebuilds the artifact reference the deployment was requested with.
func (d DeploymentRecord) Artifact() ArtifactRef {
	return ArtifactRef{ID: d.ArtifactID, URI: d.ArtifactURI, Fingerprint: d.ArtifactFingerprint}
}

// Terminal reports whether the record reached a state that no deploy
// operation advances any further.
func (d DeploymentRecord) Terminal() bool {
	switch d.Status {
	case DeploymentStatusActive, DeploymentStatusFailed, DeploymentStatusTornDown:
		return true
	}
	return false
}

// InProgress reports whether some operation is still walking the record
// through the provision/upload/activate sequence.
func (d DeploymentRecord) InProgress() bool {
	switch d.Status {
	case DeploymentStatusPending, DeploymentStatusProvisioning, DeploymentStatusUploading, DeploymentStatusActivating:
		return true
	}
	return false
}

// FormDeploy represents a form of a new deployment request.
type FormDeploy struct {
	Artifact ArtifactRef  `json:"artifact"`
	Target   TargetConfig `json:"target"`
	Replace  bool         `json:"replace"`
}
