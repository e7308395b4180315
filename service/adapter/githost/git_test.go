package githost

import (
	"context"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service/marshaller"
)

func bareRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, true)
	require.NoError(t, err)
	return dir
}

func target(url string) model.TargetConfig {
	return model.TargetConfig{
		Kind:   model.TargetKindGitHost,
		Name:   "docs",
		Params: map[string]string{"url": url},
	}
}

func TestFullLifecycle(t *testing.T) {
	url := bareRepo(t)
	g := NewGit(marshaller.NewYaml())
	ctx := context.Background()
	creds := model.CredentialBundle{Kind: model.TargetKindGitHost}
	artifact := model.ArtifactRef{ID: "model-1", URI: "/tmp/model-1.tar", Fingerprint: "sha256:abc"}

	ph, err := g.Provision(ctx, target(url), creds)
	require.NoError(t, err)
	assert.Equal(t, DefaultBranch, ph.Data["branch"])

	uh, err := g.Upload(ctx, ph, artifact, creds)
	require.NoError(t, err)
	assert.NotEmpty(t, uh.Data["commit"])

	ai, err := g.Activate(ctx, uh, creds)
	require.NoError(t, err)
	assert.Equal(t, url+"#"+DefaultBranch, ai.Endpoint)

	// the branch must exist on the remote with the pushed commit
	remote, err := gogit.PlainOpen(url)
	require.NoError(t, err)
	ref, err := remote.Reference(plumbing.NewBranchReferenceName(DefaultBranch), true)
	require.NoError(t, err)
	assert.Equal(t, ai.Data["commit"], ref.Hash().String())

	h, err := g.Status(ctx, ai, creds)
	require.NoError(t, err)
	assert.Equal(t, model.HealthHealthy, h)

	require.NoError(t, g.Teardown(ctx, ai, creds))
	h, err = g.Status(ctx, ai, creds)
	require.NoError(t, err)
	assert.Equal(t, model.HealthUnreachable, h)
}

func TestUploadIsIdempotent(t *testing.T) {
	url := bareRepo(t)
	g := NewGit(marshaller.NewYaml())
	ctx := context.Background()
	creds := model.CredentialBundle{Kind: model.TargetKindGitHost}
	artifact := model.ArtifactRef{ID: "model-1", URI: "/tmp/model-1.tar", Fingerprint: "sha256:abc"}

	ph, err := g.Provision(ctx, target(url), creds)
	require.NoError(t, err)
	uh1, err := g.Upload(ctx, ph, artifact, creds)
	require.NoError(t, err)
	uh2, err := g.Upload(ctx, ph, artifact, creds)
	require.NoError(t, err)
	assert.Equal(t, uh1.Data["commit"], uh2.Data["commit"])
}

func TestActivateWithoutManifestIsNotResumable(t *testing.T) {
	url := bareRepo(t)
	g := NewGit(marshaller.NewYaml())
	ctx := context.Background()
	creds := model.CredentialBundle{Kind: model.TargetKindGitHost}

	ph, err := g.Provision(ctx, target(url), creds)
	require.NoError(t, err)
	// seed the branch so the stat below sees a real worktree, not an empty repo
	_, err = g.Upload(ctx, model.ProvisionHandle{TargetName: "other", Data: ph.Data}, model.ArtifactRef{ID: "x", Fingerprint: "f"}, creds)
	require.NoError(t, err)

	uh := model.UploadHandle{TargetName: "docs", Data: map[string]string{
		"url": url, "branch": DefaultBranch, "fingerprint": "sha256:gone", "artifact": "model-1",
	}}
	_, err = g.Activate(ctx, uh, creds)
	assert.ErrorIs(t, err, model.ErrNotResumable)
}

func TestProvisionUnreachableRemote(t *testing.T) {
	g := NewGit(marshaller.NewYaml())
	_, err := g.Provision(context.Background(), target(t.TempDir()+"/missing"), model.CredentialBundle{})
	require.Error(t, err)
}
