package model

// ArtifactRef is an immutable handle to a deployable unit that was built and
// materialized by the packaging pipeline. URI points at the materialized
// artifact; Fingerprint is the content hash of it.
type ArtifactRef struct {
	ID          string `json:"id"`
	URI         string `json:"uri"`
	Fingerprint string `json:"fingerprint"`
}
