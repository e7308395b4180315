package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"

	"github.com/beldeveloper/deploy-lego/model"
)

// api is the subset of the S3 client the adapter relies on.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// clientFactory builds an S3 client for the region/endpoint recorded in the
// handle, authenticated with the per-call credential bundle.
type clientFactory func(ctx context.Context, region, endpoint string, c model.CredentialBundle) (api, error)

// NewS3 creates a new instance of the object storage backend adapter. The
// bucket layout per target:
//
//	deployments/<name>/.slot                    slot marker
//	deployments/<name>/artifacts/<fingerprint>  uploaded artifact
//	deployments/<name>/current                  active fingerprint pointer
func NewS3() S3 {
	return S3{clients: defaultClientFactory}
}

// S3 implements the backend adapter for the S3-compatible object storage.
type S3 struct {
	clients clientFactory
}

// Kind returns the target kind this adapter serves.
func (s S3) Kind() string {
	return model.TargetKindObjectStore
}

// Provision writes the slot marker for the target. Overwriting the marker is
// harmless, so the step stays idempotent.
func (s S3) Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error) {
	client, err := s.clients(ctx, t.Param("region"), t.Param("endpoint"), c)
	if err != nil {
		return model.ProvisionHandle{}, model.Permanent(fmt.Errorf("service.adapter.objectstore.Provision: client: %w", err))
	}
	prefix := "deployments/" + t.Name
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.Param("bucket")),
		Key:    aws.String(prefix + "/.slot"),
		Body:   strings.NewReader(t.Name),
	})
	if err != nil {
		return model.ProvisionHandle{}, classify(fmt.Errorf("service.adapter.objectstore.Provision: put marker: %w", err))
	}
	return model.ProvisionHandle{
		TargetName: t.Name,
		Data: map[string]string{
			"bucket":   t.Param("bucket"),
			"region":   t.Param("region"),
			"endpoint": t.Param("endpoint"),
			"prefix":   prefix,
		},
	}, nil
}

// Upload puts the materialized artifact under the fingerprint-addressed key.
// An already present key is reused, so the step stays idempotent.
func (s S3) Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error) {
	client, err := s.clients(ctx, h.Data["region"], h.Data["endpoint"], c)
	if err != nil {
		return model.UploadHandle{}, model.Permanent(fmt.Errorf("service.adapter.objectstore.Upload: client: %w", err))
	}
	key := h.Data["prefix"] + "/artifacts/" + a.Fingerprint
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.Data["bucket"]),
		Key:    aws.String(key),
	})
	if err == nil {
		return s.uploadHandle(h, key), nil
	}
	if !isNotFound(err) {
		return model.UploadHandle{}, classify(fmt.Errorf("service.adapter.objectstore.Upload: head: %w", err))
	}
	f, err := os.Open(a.URI)
	if err != nil {
		return model.UploadHandle{}, model.Permanent(fmt.Errorf("service.adapter.objectstore.Upload: open artifact: %w", err))
	}
	defer f.Close()
	contentType := "application/octet-stream"
	if mt, mtErr := mimetype.DetectFile(a.URI); mtErr == nil {
		contentType = mt.String()
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.Data["bucket"]),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return model.UploadHandle{}, classify(fmt.Errorf("service.adapter.objectstore.Upload: put: %w", err))
	}
	return s.uploadHandle(h, key), nil
}

// Activate points the current pointer at the uploaded artifact.
func (s S3) Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error) {
	client, err := s.clients(ctx, h.Data["region"], h.Data["endpoint"], c)
	if err != nil {
		return model.ActivationInfo{}, model.Permanent(fmt.Errorf("service.adapter.objectstore.Activate: client: %w", err))
	}
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.Data["bucket"]),
		Key:    aws.String(h.Data["key"]),
	})
	if err != nil {
		if isNotFound(err) {
			return model.ActivationInfo{}, model.Permanent(fmt.Errorf("%w: artifact object %s is gone", model.ErrNotResumable, h.Data["key"]))
		}
		return model.ActivationInfo{}, classify(fmt.Errorf("service.adapter.objectstore.Activate: head artifact: %w", err))
	}
	current := h.Data["prefix"] + "/current"
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.Data["bucket"]),
		Key:         aws.String(current),
		Body:        strings.NewReader(h.Data["key"]),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return model.ActivationInfo{}, classify(fmt.Errorf("service.adapter.objectstore.Activate: put pointer: %w", err))
	}
	info := model.ActivationInfo{
		TargetName: h.TargetName,
		Endpoint:   "s3://" + h.Data["bucket"] + "/" + current,
		Data:       map[string]string{"current": current},
	}
	for k, v := range h.Data {
		info.Data[k] = v
	}
	return info, nil
}

// Status reports whether the current pointer is still in place.
func (s S3) Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error) {
	client, err := s.clients(ctx, i.Data["region"], i.Data["endpoint"], c)
	if err != nil {
		return model.HealthUnknown, model.Permanent(fmt.Errorf("service.adapter.objectstore.Status: client: %w", err))
	}
	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(i.Data["bucket"]),
		Key:    aws.String(i.Data["current"]),
	})
	if err != nil {
		if isNotFound(err) {
			return model.HealthUnreachable, nil
		}
		return model.HealthUnknown, classify(fmt.Errorf("service.adapter.objectstore.Status: head: %w", err))
	}
	return model.HealthHealthy, nil
}

// Teardown deletes the deployment objects. Missing objects are tolerated.
func (s S3) Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error {
	client, err := s.clients(ctx, i.Data["region"], i.Data["endpoint"], c)
	if err != nil {
		return model.Permanent(fmt.Errorf("service.adapter.objectstore.Teardown: client: %w", err))
	}
	keys := []string{i.Data["current"], i.Data["key"], i.Data["prefix"] + "/.slot"}
	for _, key := range keys {
		if key == "" || key == "/.slot" {
			continue
		}
		_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(i.Data["bucket"]),
			Key:    aws.String(key),
		})
		if err != nil && !isNotFound(err) {
			return classify(fmt.Errorf("service.adapter.objectstore.Teardown: delete %s: %w", key, err))
		}
	}
	return nil
}

func (s S3) uploadHandle(h model.ProvisionHandle, key string) model.UploadHandle {
	uh := model.UploadHandle{TargetName: h.TargetName, Data: map[string]string{"key": key}}
	for k, v := range h.Data {
		uh.Data[k] = v
	}
	return uh
}

func defaultClientFactory(ctx context.Context, region, endpoint string, c model.CredentialBundle) (api, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if c.Secret("access_key_id") != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			c.Secret("access_key_id"),
			c.Secret("secret_access_key"),
			c.Secret("session_token"),
		)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func isNotFound(err error) bool {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

// classify maps an S3 failure to the transient/permanent taxonomy: server
// faults and transport failures are retryable, client faults are terminal.
func classify(err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return model.Transient(err)
	}
	if ae.ErrorFault() == smithy.FaultServer {
		return model.Transient(err)
	}
	return model.Permanent(err)
}
