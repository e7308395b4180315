package dockerhost

import (
	"context"
	"fmt"
	"strings"

	"github.com/beldeveloper/deploy-lego/model"
	appOs "github.com/beldeveloper/deploy-lego/service/os"
)

// ContainerPrefix defines the prefix of the containers managed by the adapter.
const ContainerPrefix = "deploy-lego-"

// NewDocker creates a new instance of the local docker engine backend
// adapter. The artifact URI is either an image reference to pull or a path
// to an image tar to load. The container name is derived from the target
// name, which keeps every step idempotent.
func NewDocker(osSvc appOs.Service) Docker {
	return Docker{os: osSvc}
}

// Docker implements the backend adapter for the local docker engine.
type Docker struct {
	os appOs.Service
}

// Kind returns the target kind this adapter serves.
func (d Docker) Kind() string {
	return model.TargetKindDockerHost
}

// Provision verifies the docker daemon is reachable.
func (d Docker) Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error) {
	_, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"version", "--format", "{{.Server.Version}}"}})
	if err != nil {
		return model.ProvisionHandle{}, model.Transient(fmt.Errorf("service.adapter.dockerhost.Provision: daemon: %w", err))
	}
	h := model.ProvisionHandle{
		TargetName: t.Name,
		Data:       map[string]string{"container": ContainerPrefix + t.Name},
	}
	if p := t.Param("port"); p != "" {
		h.Data["port"] = p
	}
	return h, nil
}

// Upload makes the artifact image available to the engine and tags it for
// the target. Loading or pulling an image that is already present changes
// nothing, so the step stays idempotent.
func (d Docker) Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error) {
	image := a.URI
	if strings.HasSuffix(a.URI, ".tar") {
		out, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"load", "-i", a.URI}, Log: true})
		if err != nil {
			return model.UploadHandle{}, classify(fmt.Errorf("service.adapter.dockerhost.Upload: load: %w", err))
		}
		image = parseLoadedImage(out)
		if image == "" {
			return model.UploadHandle{}, model.Permanent(fmt.Errorf("service.adapter.dockerhost.Upload: no image in load output %q", strings.TrimSpace(out)))
		}
	} else {
		_, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"pull", a.URI}, Log: true})
		if err != nil {
			return model.UploadHandle{}, classify(fmt.Errorf("service.adapter.dockerhost.Upload: pull: %w", err))
		}
	}
	tag := h.Data["container"] + ":" + shortFingerprint(a.Fingerprint)
	_, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"tag", image, tag}})
	if err != nil {
		return model.UploadHandle{}, classify(fmt.Errorf("service.adapter.dockerhost.Upload: tag: %w", err))
	}
	uh := model.UploadHandle{TargetName: h.TargetName, Data: map[string]string{"image": tag}}
	for k, v := range h.Data {
		uh.Data[k] = v
	}
	return uh, nil
}

// Activate runs the tagged image under the target's container name. A
// container that already runs the same image is reused; anything else under
// the name is replaced.
func (d Docker) Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error) {
	container := h.Data["container"]
	running, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"inspect", "-f", "{{.Config.Image}} {{.State.Status}}", container}})
	if err == nil && strings.TrimSpace(running) == h.Data["image"]+" running" {
		return d.activationInfo(h), nil
	}
	if err == nil {
		_, err = d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"rm", "-f", container}, Log: true})
		if err != nil {
			return model.ActivationInfo{}, classify(fmt.Errorf("service.adapter.dockerhost.Activate: replace container: %w", err))
		}
	}
	args := []string{"run", "-d", "--name", container}
	if p := h.Data["port"]; p != "" {
		args = append(args, "-p", p+":"+p)
	}
	args = append(args, h.Data["image"])
	_, err = d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: args, Log: true})
	if err != nil {
		return model.ActivationInfo{}, classify(fmt.Errorf("service.adapter.dockerhost.Activate: run: %w", err))
	}
	return d.activationInfo(h), nil
}

// Status reports the container state.
func (d Docker) Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error) {
	out, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"inspect", "-f", "{{.State.Status}}", i.Data["container"]}})
	if err != nil {
		if isMissing(err) {
			return model.HealthUnreachable, nil
		}
		return model.HealthUnknown, classify(fmt.Errorf("service.adapter.dockerhost.Status: inspect: %w", err))
	}
	switch strings.TrimSpace(out) {
	case "running":
		return model.HealthHealthy, nil
	case "restarting", "paused":
		return model.HealthDegraded, nil
	default:
		return model.HealthDegraded, nil
	}
}

// Teardown removes the container. A missing container is not an error.
func (d Docker) Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error {
	_, err := d.os.RunCmd(ctx, model.Cmd{Name: "docker", Args: []string{"rm", "-f", i.Data["container"]}, Log: true})
	if err != nil && !isMissing(err) {
		return classify(fmt.Errorf("service.adapter.dockerhost.Teardown: rm: %w", err))
	}
	return nil
}

func (d Docker) activationInfo(h model.UploadHandle) model.ActivationInfo {
	info := model.ActivationInfo{
		TargetName: h.TargetName,
		Endpoint:   "docker://" + h.Data["container"],
		Data:       map[string]string{},
	}
	for k, v := range h.Data {
		info.Data[k] = v
	}
	return info
}

func parseLoadedImage(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "Loaded image: "); ok {
			return rest
		}
	}
	return ""
}

func shortFingerprint(fp string) string {
	fp = strings.TrimPrefix(fp, "sha256:")
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func isMissing(err error) bool {
	return strings.Contains(err.Error(), "No such object") || strings.Contains(err.Error(), "No such container")
}

// classify maps a docker CLI failure to the transient/permanent taxonomy: a
// daemon that is not reachable is worth retrying, the rest is terminal.
func classify(err error) error {
	if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
		return model.Transient(err)
	}
	return model.Permanent(err)
}
