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

package gitops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// initSourceRepo creates a local repository on the main branch with an
// initial commit containing the given files.
func initSourceRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}

	for name, content := range files {
		target := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}

	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}

	signature := &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}
	if _, err := worktree.Commit("initial commit", &git.CommitOptions{Author: signature, Committer: signature}); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	return dir
}

// initDestinationRepo turns a freshly committed repository into a bare
// clone that can be pushed to, mimicking the remote GitOps repository.
func initDestinationRepo(t *testing.T, files map[string]string) string {
	t.Helper()

	workDir := initSourceRepo(t, files)

	bareDir := t.TempDir()
	if _, err := git.PlainClone(bareDir, true, &git.CloneOptions{URL: workDir}); err != nil {
		t.Fatalf("failed to create bare clone: %v", err)
	}

	return bareDir
}

func checkoutDestination(t *testing.T, url string) string {
	t.Helper()

	dir := t.TempDir()
	if _, err := git.PlainClone(dir, false, &git.CloneOptions{URL: url}); err != nil {
		t.Fatalf("failed to clone destination: %v", err)
	}

	return dir
}

func headMessage(t *testing.T, dir string) string {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to resolve HEAD: %v", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		t.Fatalf("failed to read HEAD commit: %v", err)
	}

	return commit.Message
}

func testWorkload(templateRepo string) *workloadv1alpha1.Workload {
	return &workloadv1alpha1.Workload{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "myworkload",
			Namespace: "default",
		},
		Spec: workloadv1alpha1.WorkloadSpec{
			Template: workloadv1alpha1.TemplateSpec{
				Source: templateRepo,
				Path:   "templates/deploy",
			},
			Values: map[string]string{
				"image": "nginx:1.25",
			},
		},
	}
}

func testAssignment() *workloadv1alpha1.WorkloadAssignment {
	return &workloadv1alpha1.WorkloadAssignment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "myworkload",
			Namespace: "default",
		},
		Spec: workloadv1alpha1.WorkloadAssignmentSpec{
			Workload: "myworkload",
			Cluster:  "az-eastus2-1",
		},
	}
}

func TestCreateDeployment(t *testing.T) {
	ctx := context.Background()

	templateRepo := initSourceRepo(t, map[string]string{
		"templates/deploy/deployment.yaml": "cluster: {{ .clusterName }}\nimage: {{ .image }}\n",
		"templates/deploy/service.yaml":    "name: {{ .clusterName }}-svc\n",
		"templates/deploy/.ci/check.yaml":  "never: rendered\n",
	})

	destRepo := initDestinationRepo(t, map[string]string{
		"README.md":                               "deployments\n",
		"az-eastus2-1/flux-system/gotk-sync.yaml": "managed by flux\n",
	})

	workflow, err := NewWorkflow(testLogger(), Options{
		RepositoryURL: destRepo,
		Branch:        "main",
	})
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}

	if err := workflow.CreateDeployment(ctx, testWorkload(templateRepo), testAssignment()); err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	checkout := checkoutDestination(t, destRepo)

	deployment, err := os.ReadFile(filepath.Join(checkout, "az-eastus2-1", "myworkload", "deployment.yaml"))
	if err != nil {
		t.Fatalf("expected rendered deployment in destination repository: %v", err)
	}
	if expected := "cluster: az-eastus2-1\nimage: nginx:1.25\n"; string(deployment) != expected {
		t.Errorf("expected deployment content %q, got %q", expected, string(deployment))
	}

	if _, err := os.Stat(filepath.Join(checkout, "az-eastus2-1", "myworkload", "service.yaml")); err != nil {
		t.Errorf("expected rendered service in destination repository: %v", err)
	}
	if _, err := os.Stat(filepath.Join(checkout, "az-eastus2-1", "myworkload", ".ci")); !os.IsNotExist(err) {
		t.Error("expected dot-prefixed template directory to be excluded")
	}

	manifest, err := os.ReadFile(filepath.Join(checkout, "az-eastus2-1", KustomizationFileName))
	if err != nil {
		t.Fatalf("expected aggregation manifest in destination repository: %v", err)
	}
	expectedManifest := `apiVersion: kustomize.config.k8s.io/v1beta1
kind: Kustomization
resources:
    - ../common
    - myworkload
`
	if string(manifest) != expectedManifest {
		t.Errorf("expected manifest:\n%s\ngot:\n%s", expectedManifest, string(manifest))
	}

	message := headMessage(t, checkout)
	if !strings.Contains(message, "WorkloadAssignment myworkload") || !strings.Contains(message, "Cluster az-eastus2-1") {
		t.Errorf("unexpected commit message: %q", message)
	}
}

func TestCreateDeploymentIsIdempotent(t *testing.T) {
	ctx := context.Background()

	templateRepo := initSourceRepo(t, map[string]string{
		"templates/deploy/deployment.yaml": "cluster: {{ .clusterName }}\n",
	})
	destRepo := initDestinationRepo(t, map[string]string{
		"README.md": "deployments\n",
	})

	workflow, err := NewWorkflow(testLogger(), Options{RepositoryURL: destRepo})
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}

	workload := testWorkload(templateRepo)
	assignment := testAssignment()

	if err := workflow.CreateDeployment(ctx, workload, assignment); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	firstHead := headMessage(t, checkoutDestination(t, destRepo))

	// repeating an identical reconciliation must neither fail nor
	// produce a new commit
	if err := workflow.CreateDeployment(ctx, workload, assignment); err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	secondHead := headMessage(t, checkoutDestination(t, destRepo))
	if firstHead != secondHead {
		t.Error("expected repeated reconciliation to not create a new commit")
	}
}

func TestCreateDeploymentReplacesStaleArtifacts(t *testing.T) {
	ctx := context.Background()

	destRepo := initDestinationRepo(t, map[string]string{
		"README.md":                          "deployments\n",
		"az-eastus2-1/myworkload/stale.yaml": "from an older template version\n",
	})

	templateRepo := initSourceRepo(t, map[string]string{
		"templates/deploy/deployment.yaml": "cluster: {{ .clusterName }}\n",
	})

	workflow, err := NewWorkflow(testLogger(), Options{RepositoryURL: destRepo})
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}

	if err := workflow.CreateDeployment(ctx, testWorkload(templateRepo), testAssignment()); err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	checkout := checkoutDestination(t, destRepo)

	if _, err := os.Stat(filepath.Join(checkout, "az-eastus2-1", "myworkload", "stale.yaml")); !os.IsNotExist(err) {
		t.Error("expected stale artifact to be removed")
	}
	if _, err := os.Stat(filepath.Join(checkout, "az-eastus2-1", "myworkload", "deployment.yaml")); err != nil {
		t.Errorf("expected fresh artifact to exist: %v", err)
	}
}

func TestDeleteDeployment(t *testing.T) {
	ctx := context.Background()

	templateRepo := initSourceRepo(t, map[string]string{
		"templates/deploy/deployment.yaml": "cluster: {{ .clusterName }}\n",
	})
	destRepo := initDestinationRepo(t, map[string]string{
		"README.md": "deployments\n",
	})

	workflow, err := NewWorkflow(testLogger(), Options{RepositoryURL: destRepo})
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}

	workload := testWorkload(templateRepo)
	assignment := testAssignment()

	if err := workflow.CreateDeployment(ctx, workload, assignment); err != nil {
		t.Fatalf("failed to create deployment: %v", err)
	}

	if err := workflow.DeleteDeployment(ctx, assignment); err != nil {
		t.Fatalf("failed to delete deployment: %v", err)
	}

	checkout := checkoutDestination(t, destRepo)

	if _, err := os.Stat(filepath.Join(checkout, "az-eastus2-1", "myworkload")); !os.IsNotExist(err) {
		t.Error("expected deployment artifacts to be removed")
	}

	manifest, err := os.ReadFile(filepath.Join(checkout, "az-eastus2-1", KustomizationFileName))
	if err != nil {
		t.Fatalf("expected aggregation manifest to survive deletion: %v", err)
	}
	if strings.Contains(string(manifest), "myworkload") {
		t.Errorf("expected manifest to no longer reference the assignment, got:\n%s", string(manifest))
	}

	message := headMessage(t, checkout)
	if !strings.Contains(message, "deleted WorkloadAssignment myworkload") {
		t.Errorf("unexpected commit message: %q", message)
	}
}

func TestCreateDeploymentFailsOnMissingTemplatePath(t *testing.T) {
	ctx := context.Background()

	templateRepo := initSourceRepo(t, map[string]string{
		"README.md": "no templates here\n",
	})
	destRepo := initDestinationRepo(t, map[string]string{
		"README.md": "deployments\n",
	})

	workflow, err := NewWorkflow(testLogger(), Options{RepositoryURL: destRepo})
	if err != nil {
		t.Fatalf("failed to create workflow: %v", err)
	}

	if err := workflow.CreateDeployment(ctx, testWorkload(templateRepo), testAssignment()); err == nil {
		t.Fatal("expected an error for a missing template path, got none")
	}
}

func TestNewWorkflowRequiresRepositoryURL(t *testing.T) {
	if _, err := NewWorkflow(testLogger(), Options{}); err == nil {
		t.Fatal("expected an error for a missing repository URL, got none")
	}
}

func TestClassifyPushError(t *testing.T) {
	nonFastForward := classifyPushError(errors.New("command error on refs/heads/main: non-fast-forward update: refs/heads/main"))
	if !nonFastForward.Retryable {
		t.Error("expected a non-fast-forward rejection to be retryable")
	}
	if !IsRetryable(nonFastForward) {
		t.Error("expected IsRetryable to detect the retryable repository error")
	}

	fatal := classifyPushError(errors.New("authentication required"))
	if fatal.Retryable {
		t.Error("expected an authentication failure to not be retryable")
	}
	if IsRetryable(errors.New("some other error")) {
		t.Error("expected IsRetryable to be false for plain errors")
	}
}
