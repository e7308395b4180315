package githost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/beldeveloper/deploy-lego/model"
	"github.com/beldeveloper/deploy-lego/service/marshaller"
)

// DefaultBranch defines the branch that receives the deployment manifests
// when the "branch" target parameter is not set.
const DefaultBranch = "deployments"

// artifactManifest is the file committed on upload. The content is
// deterministic so repeating the step reuses the existing commit.
type artifactManifest struct {
	ID          string `yaml:"id"`
	URI         string `yaml:"uri"`
	Fingerprint string `yaml:"fingerprint"`
}

// currentManifest is the pointer file committed on activation.
type currentManifest struct {
	ArtifactID  string `yaml:"artifactId"`
	Fingerprint string `yaml:"fingerprint"`
}

// NewGit creates a new instance of the git-hosted backend adapter. A
// deployment is a pair of manifest files committed to the configured branch
// of the remote repository:
//
//	deployments/<name>/artifact.yaml  uploaded artifact manifest
//	deployments/<name>/current.yaml   active artifact pointer
func NewGit(cfgMarshaller marshaller.Service) Git {
	return Git{cfgMarshaller: cfgMarshaller}
}

// Git implements the backend adapter for the git-hosted platform.
type Git struct {
	cfgMarshaller marshaller.Service
}

// Kind returns the target kind this adapter serves.
func (g Git) Kind() string {
	return model.TargetKindGitHost
}

// Provision verifies that the remote repository is reachable with the given
// credentials. Listing the refs mutates nothing, so the step is idempotent.
func (g Git) Provision(ctx context.Context, t model.TargetConfig, c model.CredentialBundle) (model.ProvisionHandle, error) {
	branch := t.Param("branch")
	if branch == "" {
		branch = DefaultBranch
	}
	rem := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{t.Param("url")},
	})
	_, err := rem.ListContext(ctx, &git.ListOptions{Auth: auth(c)})
	if err != nil && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return model.ProvisionHandle{}, classify(fmt.Errorf("service.adapter.githost.Provision: list remote: %w", err))
	}
	return model.ProvisionHandle{
		TargetName: t.Name,
		Data:       map[string]string{"url": t.Param("url"), "branch": branch},
	}, nil
}

// Upload commits the artifact manifest for the target. An unchanged manifest
// leaves the worktree clean and the existing commit is reused.
func (g Git) Upload(ctx context.Context, h model.ProvisionHandle, a model.ArtifactRef, c model.CredentialBundle) (model.UploadHandle, error) {
	manifest, err := g.cfgMarshaller.Marshal(artifactManifest{ID: a.ID, URI: a.URI, Fingerprint: a.Fingerprint})
	if err != nil {
		return model.UploadHandle{}, model.Permanent(fmt.Errorf("service.adapter.githost.Upload: marshal manifest: %w", err))
	}
	commit, err := g.writeAndPush(
		ctx, h.Data["url"], h.Data["branch"], auth(c),
		fmt.Sprintf("upload %s (%s)", h.TargetName, a.Fingerprint),
		func(fs billy.Filesystem) error {
			return writeFile(fs, "deployments/"+h.TargetName+"/artifact.yaml", manifest)
		},
	)
	if err != nil {
		return model.UploadHandle{}, err
	}
	return model.UploadHandle{
		TargetName: h.TargetName,
		Data:       map[string]string{"url": h.Data["url"], "branch": h.Data["branch"], "commit": commit, "fingerprint": a.Fingerprint, "artifact": a.ID},
	}, nil
}

// Activate commits the current pointer for the target.
func (g Git) Activate(ctx context.Context, h model.UploadHandle, c model.CredentialBundle) (model.ActivationInfo, error) {
	pointer, err := g.cfgMarshaller.Marshal(currentManifest{ArtifactID: h.Data["artifact"], Fingerprint: h.Data["fingerprint"]})
	if err != nil {
		return model.ActivationInfo{}, model.Permanent(fmt.Errorf("service.adapter.githost.Activate: marshal pointer: %w", err))
	}
	commit, err := g.writeAndPush(
		ctx, h.Data["url"], h.Data["branch"], auth(c),
		fmt.Sprintf("activate %s (%s)", h.TargetName, h.Data["fingerprint"]),
		func(fs billy.Filesystem) error {
			if _, statErr := fs.Stat("deployments/" + h.TargetName + "/artifact.yaml"); statErr != nil {
				return model.Permanent(fmt.Errorf("%w: artifact manifest for %s is gone", model.ErrNotResumable, h.TargetName))
			}
			return writeFile(fs, "deployments/"+h.TargetName+"/current.yaml", pointer)
		},
	)
	if err != nil {
		return model.ActivationInfo{}, err
	}
	return model.ActivationInfo{
		TargetName: h.TargetName,
		Endpoint:   h.Data["url"] + "#" + h.Data["branch"],
		Data:       map[string]string{"url": h.Data["url"], "branch": h.Data["branch"], "commit": commit},
	}, nil
}

// Status reports whether the current pointer is still committed on the branch.
func (g Git) Status(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) (model.HealthState, error) {
	_, wt, err := g.checkout(ctx, i.Data["url"], i.Data["branch"], auth(c))
	if err != nil {
		return model.HealthUnknown, classify(fmt.Errorf("service.adapter.githost.Status: checkout: %w", err))
	}
	if _, err = wt.Filesystem.Stat("deployments/" + i.TargetName + "/current.yaml"); err != nil {
		return model.HealthUnreachable, nil
	}
	return model.HealthHealthy, nil
}

// Teardown removes the deployment manifests from the branch. A target that
// is already absent is not an error.
func (g Git) Teardown(ctx context.Context, i model.ActivationInfo, c model.CredentialBundle) error {
	_, err := g.writeAndPush(
		ctx, i.Data["url"], i.Data["branch"], auth(c),
		fmt.Sprintf("teardown %s", i.TargetName),
		func(fs billy.Filesystem) error {
			return util.RemoveAll(fs, "deployments/"+i.TargetName)
		},
	)
	return err
}

// writeAndPush clones the branch into memory, applies the mutation, commits
// and pushes. A clean worktree after the mutation reuses the head commit.
func (g Git) writeAndPush(ctx context.Context, url, branch string, a transport.AuthMethod, msg string, mutate func(fs billy.Filesystem) error) (string, error) {
	repo, wt, err := g.checkout(ctx, url, branch, a)
	if err != nil {
		return "", classify(fmt.Errorf("service.adapter.githost: checkout %s: %w", branch, err))
	}
	if err = mutate(wt.Filesystem); err != nil {
		var be model.BackendError
		if errors.As(err, &be) {
			return "", err
		}
		return "", model.Permanent(fmt.Errorf("service.adapter.githost: mutate worktree: %w", err))
	}
	if err = wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", model.Permanent(fmt.Errorf("service.adapter.githost: stage changes: %w", err))
	}
	status, err := wt.Status()
	if err != nil {
		return "", model.Permanent(fmt.Errorf("service.adapter.githost: worktree status: %w", err))
	}
	var hash plumbing.Hash
	if status.IsClean() {
		head, headErr := repo.Head()
		if headErr != nil {
			return "", model.Permanent(fmt.Errorf("service.adapter.githost: nothing to commit on unborn branch: %w", headErr))
		}
		hash = head.Hash()
	} else {
		hash, err = wt.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "deploy-lego", Email: "deploy-lego@localhost", When: time.Now()},
		})
		if err != nil {
			return "", model.Permanent(fmt.Errorf("service.adapter.githost: commit: %w", err))
		}
	}
	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin", RefSpecs: []config.RefSpec{refSpec}, Auth: a})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", classify(fmt.Errorf("service.adapter.githost: push %s: %w", branch, err))
	}
	return hash.String(), nil
}

// checkout clones the branch into an in-memory worktree. A missing branch is
// started from the default one; an empty remote is started from scratch.
func (g Git) checkout(ctx context.Context, url, branch string, a transport.AuthMethod) (*git.Repository, *git.Worktree, error) {
	fs := memfs.New()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
		URL:           url,
		Auth:          a,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err == nil {
		wt, wtErr := repo.Worktree()
		return repo, wt, wtErr
	}
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return initEmpty(url, branch)
	}
	// the deployment branch may not exist yet; start it from the default branch
	fs = memfs.New()
	repo, defErr := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{URL: url, Auth: a})
	if defErr != nil {
		if errors.Is(defErr, transport.ErrEmptyRemoteRepository) {
			return initEmpty(url, branch)
		}
		return nil, nil, err
	}
	wt, wtErr := repo.Worktree()
	if wtErr != nil {
		return nil, nil, wtErr
	}
	wtErr = wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch), Create: true})
	if wtErr != nil {
		return nil, nil, wtErr
	}
	return repo, wt, nil
}

func initEmpty(url, branch string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.Init(memory.NewStorage(), memfs.New())
	if err != nil {
		return nil, nil, err
	}
	if _, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{url}}); err != nil {
		return nil, nil, err
	}
	err = repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch)))
	if err != nil {
		return nil, nil, err
	}
	wt, err := repo.Worktree()
	return repo, wt, err
}

func writeFile(fs billy.Filesystem, path string, data []byte) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func auth(c model.CredentialBundle) transport.AuthMethod {
	if c.Secret("token") == "" {
		return nil
	}
	username := c.Secret("username")
	if username == "" {
		username = "token"
	}
	return &githttp.BasicAuth{Username: username, Password: c.Secret("token")}
}

// classify maps a git transport failure to the transient/permanent taxonomy:
// auth and missing-repository failures are terminal, the rest is assumed to
// be a network hiccup.
func classify(err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrRepositoryNotFound):
		return model.Permanent(err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return model.Permanent(err)
	}
	return model.Transient(err)
}
