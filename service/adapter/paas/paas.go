package paas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/beldeveloper/deploy-lego/model"
)

// NewPaaS creates a new instance of the PaaS backend adapter. The adapter
// drives a JSON-over-HTTP control API; the API base URL comes from the
// "api_url" target parameter and the bearer token from the "token" secret.
func NewPaaS() PaaS {
	return PaaS{client: &http.Client{Timeout: 30 * time.Second}}
}

// PaaS implements the backend adapter for the PaaS platform.
type PaaS struct {
	client *http.Client
}

// Kind returns the target kind this adapter serves.
func (p PaaS) Kind() string {
	return model.TargetKindPaaS
}

// Provision ensures the application slot exists on the platform. The call is
// a PUT, so repeating it for the same target name does not create a second app.
func (p PaaS) Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error) {
	api := t.Param("api_url")
	err := p.do(ctx, http.MethodPut, api+"/apps/"+t.Name, c.Secret("token"), map[string]string{"name": t.Name}, nil)
	if err != nil {
		return model.ProvisionHandle{}, classify(fmt.Errorf("service.adapter.paas.Provision: %w", err))
	}
	return model.ProvisionHandle{
		TargetName: t.Name,
		Data:       map[string]string{"api": api, "app": t.Name},
	}, nil
}

// Upload registers the artifact as a release of the application. The control
// API returns the already existing release for a known fingerprint, which
// keeps the step idempotent.
func (p PaaS) Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error) {
	var resp struct {
		Release string `json:"release"`
	}
	body := map[string]string{"artifact": a.ID, "uri": a.URI, "fingerprint": a.Fingerprint}
	err := p.do(ctx, http.MethodPost, h.Data["api"]+"/apps/"+h.Data["app"]+"/releases", c.Secret("token"), body, &resp)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return model.UploadHandle{}, model.Permanent(fmt.Errorf("%w: app %s is gone", model.ErrNotResumable, h.Data["app"]))
		}
		return model.UploadHandle{}, classify(fmt.Errorf("service.adapter.paas.Upload: %w", err))
	}
	return model.UploadHandle{
		TargetName: h.TargetName,
		Data:       map[string]string{"api": h.Data["api"], "app": h.Data["app"], "release": resp.Release},
	}, nil
}

// Activate makes the uploaded release the serving one.
func (p PaaS) Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error) {
	var resp struct {
		URL string `json:"url"`
	}
	url := h.Data["api"] + "/apps/" + h.Data["app"] + "/releases/" + h.Data["release"] + "/activate"
	err := p.do(ctx, http.MethodPost, url, c.Secret("token"), nil, &resp)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return model.ActivationInfo{}, model.Permanent(fmt.Errorf("%w: release %s is gone", model.ErrNotResumable, h.Data["release"]))
		}
		return model.ActivationInfo{}, classify(fmt.Errorf("service.adapter.paas.Activate: %w", err))
	}
	return model.ActivationInfo{
		TargetName: h.TargetName,
		Endpoint:   resp.URL,
		Data:       map[string]string{"api": h.Data["api"], "app": h.Data["app"], "release": h.Data["release"]},
	}, nil
}

// Status reports the health of the application.
func (p PaaS) Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := p.do(ctx, http.MethodGet, i.Data["api"]+"/apps/"+i.Data["app"]+"/health", c.Secret("token"), nil, &resp)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return model.HealthUnreachable, nil
		}
		return model.HealthUnknown, classify(fmt.Errorf("service.adapter.paas.Status: %w", err))
	}
	switch resp.Status {
	case "healthy", "up":
		return model.HealthHealthy, nil
	case "degraded":
		return model.HealthDegraded, nil
	default:
		return model.HealthUnreachable, nil
	}
}

// Teardown deletes the application. A missing app is not an error.
func (p PaaS) Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error {
	err := p.do(ctx, http.MethodDelete, i.Data["api"]+"/apps/"+i.Data["app"], c.Secret("token"), nil, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return classify(fmt.Errorf("service.adapter.paas.Teardown: %w", err))
	}
	return nil
}

// apiError keeps the response code of a failed control API call.
type apiError struct {
	code int
	body string
}

func (e apiError) Error() string {
	return fmt.Sprintf("control api responded %d: %s", e.code, e.body)
}

func isStatus(err error, code int) bool {
	var ae apiError
	return asAPIError(err, &ae) && ae.code == code
}

func asAPIError(err error, target *apiError) bool {
	for err != nil {
		if ae, ok := err.(apiError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// classify maps a control API failure to the transient/permanent taxonomy:
// network failures, 429 and 5xx are retryable, the rest is terminal.
func classify(err error) error {
	var ae apiError
	if !asAPIError(err, &ae) {
		return model.Transient(err)
	}
	if ae.code == http.StatusTooManyRequests || ae.code >= http.StatusInternalServerError {
		return model.Transient(err)
	}
	return model.Permanent(err)
}

func (p PaaS) do(ctx context.Context, method, url, token string, in, out interface{}) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var msg bytes.Buffer
		_, _ = msg.ReadFrom(resp.Body)
		return fmt.Errorf("call %s %s: %w", method, url, apiError{code: resp.StatusCode, body: msg.String()})
	}
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
