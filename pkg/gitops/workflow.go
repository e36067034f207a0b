/*
Copyright 2026 The Kubermatic Kubernetes Platform contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package gitops turns workload assignments into rendered manifest
// trees inside a Git repository consumed by a downstream sync agent.
//
// Every create/delete invocation is self-contained: it clones the
// involved repositories into fresh temporary directories, applies its
// changes on top of the current branch head and pushes. There is no
// locking; a push rejected by the remote's fast-forward check simply
// means another reconciliation won the race, and the whole sequence is
// safe to retry from scratch.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"
)

const (
	// DefaultBranch is the branch deployments are committed to unless
	// configured otherwise.
	DefaultBranch = "main"

	defaultCommitterName  = "Workload Operator"
	defaultCommitterEmail = "workload-operator@k8c.io"
	defaultStepTimeout    = 2 * time.Minute
)

// Options configure the GitOps workflow.
type Options struct {
	// RepositoryURL is the destination GitOps repository all
	// deployments are committed to.
	RepositoryURL string

	// Branch is the branch of the destination repository, defaults to
	// DefaultBranch.
	Branch string

	// Auth is the transport credential for both the template and the
	// destination repository. May be nil for anonymous access.
	Auth transport.AuthMethod

	// CommitterName and CommitterEmail identify this operator in the
	// commits it creates.
	CommitterName  string
	CommitterEmail string

	// PlatformDefaults are the lowest-precedence template values, e.g.
	// cloud and region of the platform.
	PlatformDefaults map[string]string

	// StepTimeout bounds each network step (clone, push).
	StepTimeout time.Duration
}

// Workflow materializes and dematerializes workload deployments in the
// destination GitOps repository.
type Workflow struct {
	opt Options
	log *zap.SugaredLogger
}

func NewWorkflow(log *zap.SugaredLogger, opt Options) (*Workflow, error) {
	if opt.RepositoryURL == "" {
		return nil, errors.New("no destination repository configured")
	}

	if opt.Branch == "" {
		opt.Branch = DefaultBranch
	}
	if opt.CommitterName == "" {
		opt.CommitterName = defaultCommitterName
	}
	if opt.CommitterEmail == "" {
		opt.CommitterEmail = defaultCommitterEmail
	}
	if opt.StepTimeout <= 0 {
		opt.StepTimeout = defaultStepTimeout
	}

	return &Workflow{
		opt: opt,
		log: log,
	}, nil
}

// CreateDeployment renders the workload's template into the destination
// repository at "<cluster>/<assignment name>", regenerates the cluster
// aggregation manifest and pushes the result. It replaces any content a
// previous reconciliation left at that path, which makes it safe to call
// repeatedly for the same assignment.
func (w *Workflow) CreateDeployment(ctx context.Context, workload *workloadv1alpha1.Workload, assignment *workloadv1alpha1.WorkloadAssignment) error {
	log := w.log.With("workloadassignment", assignment.Name, "workload", workload.Name, "cluster", assignment.Spec.Cluster)

	templateDir, _, cleanupTemplate, err := w.cloneRepository(ctx, workload.Spec.Template.Source, workload.Spec.Template.Reference)
	if err != nil {
		return err
	}
	defer cleanupTemplate()

	destDir, destRepo, cleanupDest, err := w.cloneRepository(ctx, w.opt.RepositoryURL, w.opt.Branch)
	if err != nil {
		return err
	}
	defer cleanupDest()

	templatePath := filepath.Join(templateDir, filepath.FromSlash(workload.Spec.Template.Path))
	if _, err := os.Stat(templatePath); err != nil {
		return fmt.Errorf("template path %q does not exist in %s: %w", workload.Spec.Template.Path, workload.Spec.Template.Source, err)
	}

	worktree, err := destRepo.Worktree()
	if err != nil {
		return &RepositoryError{Op: "worktree", Err: err}
	}

	// stale files from a prior template version must not survive, so
	// the output path is cleared before rendering
	outputRel := path.Join(assignment.Spec.Cluster, assignment.Name)
	if err := w.removeTracked(destRepo, worktree, outputRel); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(destDir, filepath.FromSlash(outputRel))); err != nil {
		return fmt.Errorf("failed to clear output path: %w", err)
	}

	values, err := mergeValues(
		w.opt.PlatformDefaults,
		map[string]string{"clusterName": assignment.Spec.Cluster},
		workload.Spec.Values,
		workload.Spec.EnvironmentValues[assignment.Spec.Environment],
		assignment.Spec.Values,
	)
	if err != nil {
		return err
	}

	paths, err := Render(templatePath, destDir, outputRel, values)
	if err != nil {
		return err
	}
	log.Debugw("rendered deployment template", "files", len(paths))

	if err := Link(filepath.Join(destDir, assignment.Spec.Cluster)); err != nil {
		return err
	}

	for _, rendered := range paths {
		if _, err := worktree.Add(rendered); err != nil {
			return &RepositoryError{Op: "add", Err: fmt.Errorf("%s: %w", rendered, err)}
		}
	}
	if _, err := worktree.Add(path.Join(assignment.Spec.Cluster, KustomizationFileName)); err != nil {
		return &RepositoryError{Op: "add", Err: err}
	}

	message := fmt.Sprintf("Reconciling created WorkloadAssignment %s for Workload %s for Cluster %s", assignment.Name, workload.Name, assignment.Spec.Cluster)

	return w.commitAndPush(ctx, destRepo, worktree, message, log)
}

// DeleteDeployment removes the assignment's rendered artifacts from the
// destination repository and regenerates the cluster aggregation
// manifest so the assignment no longer appears in it.
func (w *Workflow) DeleteDeployment(ctx context.Context, assignment *workloadv1alpha1.WorkloadAssignment) error {
	log := w.log.With("workloadassignment", assignment.Name, "cluster", assignment.Spec.Cluster)

	destDir, destRepo, cleanupDest, err := w.cloneRepository(ctx, w.opt.RepositoryURL, w.opt.Branch)
	if err != nil {
		return err
	}
	defer cleanupDest()

	worktree, err := destRepo.Worktree()
	if err != nil {
		return &RepositoryError{Op: "worktree", Err: err}
	}

	outputRel := path.Join(assignment.Spec.Cluster, assignment.Name)
	if err := w.removeTracked(destRepo, worktree, outputRel); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(destDir, filepath.FromSlash(outputRel))); err != nil {
		return fmt.Errorf("failed to clear output path: %w", err)
	}

	clusterDir := filepath.Join(destDir, assignment.Spec.Cluster)
	if err := os.MkdirAll(clusterDir, 0755); err != nil {
		return fmt.Errorf("failed to create cluster directory: %w", err)
	}

	if err := Link(clusterDir); err != nil {
		return err
	}

	if _, err := worktree.Add(path.Join(assignment.Spec.Cluster, KustomizationFileName)); err != nil {
		return &RepositoryError{Op: "add", Err: err}
	}

	message := fmt.Sprintf("Reconciling deleted WorkloadAssignment %s for Environment %s for Cluster %s", assignment.Name, assignment.Spec.Environment, assignment.Spec.Cluster)

	return w.commitAndPush(ctx, destRepo, worktree, message, log)
}

// cloneRepository clones the given repository into a fresh temporary
// directory. The returned cleanup function removes the clone and must be
// called on every exit path; clones are never reused across
// reconciliations.
func (w *Workflow) cloneRepository(ctx context.Context, url, reference string) (string, *git.Repository, func(), error) {
	dir, err := os.MkdirTemp("", "workload-gitops-")
	if err != nil {
		return "", nil, nil, fmt.Errorf("failed to create temporary directory: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			w.log.Errorw("Failed to remove temporary clone", "directory", dir, zap.Error(err))
		}
	}

	cloneCtx, cancel := context.WithTimeout(ctx, w.opt.StepTimeout)
	defer cancel()

	opts := &git.CloneOptions{
		URL:  url,
		Auth: w.opt.Auth,
	}
	if reference != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(reference)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(cloneCtx, dir, false, opts)
	if err != nil {
		cleanup()
		return "", nil, nil, &RepositoryError{Op: "clone", Err: fmt.Errorf("%s: %w", url, err)}
	}

	return dir, repo, cleanup, nil
}

// removeTracked removes all index entries below the given slash-relative
// prefix from both the index and the working tree.
func (w *Workflow) removeTracked(repo *git.Repository, worktree *git.Worktree, prefix string) error {
	idx, err := repo.Storer.Index()
	if err != nil {
		return &RepositoryError{Op: "read-index", Err: err}
	}

	for _, entry := range idx.Entries {
		if entry.Name != prefix && !strings.HasPrefix(entry.Name, prefix+"/") {
			continue
		}

		if _, err := worktree.Remove(entry.Name); err != nil {
			return &RepositoryError{Op: "remove", Err: fmt.Errorf("%s: %w", entry.Name, err)}
		}
	}

	return nil
}

func (w *Workflow) commitAndPush(ctx context.Context, repo *git.Repository, worktree *git.Worktree, message string, log *zap.SugaredLogger) error {
	head, err := repo.Head()
	if err != nil {
		return &RepositoryError{Op: "resolve-head", Err: err}
	}

	signature := &object.Signature{
		Name:  w.opt.CommitterName,
		Email: w.opt.CommitterEmail,
		When:  time.Now(),
	}

	commit, err := worktree.Commit(message, &git.CommitOptions{
		Author:    signature,
		Committer: signature,
		Parents:   []plumbing.Hash{head.Hash()},
	})
	if err != nil {
		// staging identical content leaves a clean tree, e.g. when a
		// reconciliation is repeated; nothing to push then
		if errors.Is(err, git.ErrEmptyCommit) {
			log.Debug("No deployment changes to commit")
			return nil
		}

		return &RepositoryError{Op: "commit", Err: err}
	}

	pushCtx, cancel := context.WithTimeout(ctx, w.opt.StepTimeout)
	defer cancel()

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", w.opt.Branch, w.opt.Branch))
	err = repo.PushContext(pushCtx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       w.opt.Auth,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyPushError(err)
	}

	log.Infow("Pushed deployment changes", "commit", commit.String(), "branch", w.opt.Branch)

	return nil
}
