package model

// ProvisionHandle points at the remote slot that an adapter prepared for a
// target. Data is opaque to the orchestrator and is persisted as-is.
type ProvisionHandle struct {
	TargetName string            `json:"targetName"`
	Data       map[string]string `json:"data"`
}

// Empty reports whether the handle was ever produced.
func (h ProvisionHandle) Empty() bool {
	return h.TargetName == ""
}

// UploadHandle points at the artifact copy that an adapter placed on the
// remote platform.
type UploadHandle struct {
	TargetName string            `json:"targetName"`
	Data       map[string]string `json:"data"`
}

// Empty reports whether the handle was ever produced.
func (h UploadHandle) Empty() bool {
	return h.TargetName == ""
}

// ActivationInfo describes an activated deployment on the remote platform.
type ActivationInfo struct {
	TargetName string            `json:"targetName"`
	Endpoint   string            `json:"endpoint"`
	Data       map[string]string `json:"data"`
}

// Empty reports whether the activation ever happened.
func (i ActivationInfo) Empty() bool {
	return i.TargetName == ""
}
