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

package workloadassignment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"
	"k8c.io/workload-operator/pkg/gitops"
	kuberneteshelper "k8c.io/workload-operator/pkg/kubernetes"
	"k8c.io/workload-operator/pkg/metrics"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/tools/record"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

// Workflow performs the Git side of a reconciliation. It is implemented
// by gitops.Workflow and faked in tests.
type Workflow interface {
	CreateDeployment(ctx context.Context, workload *workloadv1alpha1.Workload, assignment *workloadv1alpha1.WorkloadAssignment) error
	DeleteDeployment(ctx context.Context, assignment *workloadv1alpha1.WorkloadAssignment) error
}

// UserInputError marks a reconciliation failure caused by the content
// of the objects themselves, e.g. an assignment referencing a Workload
// that does not exist. Retrying cannot fix these until the user does.
type UserInputError struct {
	Reason string
}

func (e *UserInputError) Error() string {
	return e.Reason
}

// Reconciler synchronizes WorkloadAssignments into the GitOps repository.
type Reconciler struct {
	ctrlruntimeclient.Client

	log          *zap.SugaredLogger
	recorder     record.EventRecorder
	workflow     Workflow
	syncInterval time.Duration
	errorBackoff time.Duration
}

func (r *Reconciler) Reconcile(ctx context.Context, request reconcile.Request) (reconcile.Result, error) {
	log := r.log.With("workloadassignment", request.NamespacedName)
	log.Debug("Processing")

	assignment := &workloadv1alpha1.WorkloadAssignment{}
	if err := r.Get(ctx, request.NamespacedName, assignment); err != nil {
		// object is gone, the finalizer has already done its job
		return reconcile.Result{}, ctrlruntimeclient.IgnoreNotFound(err)
	}

	// the namespace scopes both the Workload lookup and the generated
	// artifacts, without it nothing can be materialized or cleaned up
	if assignment.Namespace == "" {
		return r.fail(log, assignment, metrics.ActionCreate, &UserInputError{
			Reason: "assignment has no namespace",
		})
	}

	if assignment.DeletionTimestamp != nil {
		return r.handleDeletion(ctx, log, assignment)
	}

	return r.handleCreation(ctx, log, assignment)
}

// handleCreation materializes the assignment's manifests. It also covers
// assignments seen for the first time and repeated steady-state syncs,
// the Git workflow is idempotent for all of them.
func (r *Reconciler) handleCreation(ctx context.Context, log *zap.SugaredLogger, assignment *workloadv1alpha1.WorkloadAssignment) (reconcile.Result, error) {
	workload := &workloadv1alpha1.Workload{}
	key := ctrlruntimeclient.ObjectKey{Namespace: assignment.Namespace, Name: assignment.Spec.Workload}
	if err := r.Get(ctx, key, workload); err != nil {
		if apierrors.IsNotFound(err) {
			// nothing was materialized yet, so no finalizer is needed
			return r.fail(log, assignment, metrics.ActionCreate, &UserInputError{
				Reason: fmt.Sprintf("assignment references Workload %q which does not exist", assignment.Spec.Workload),
			})
		}

		return r.fail(log, assignment, metrics.ActionCreate, fmt.Errorf("failed to get Workload: %w", err))
	}

	// the finalizer must be in place before anything is pushed, so a
	// crash between the two steps cannot leak manifests
	if err := kuberneteshelper.TryAddFinalizer(ctx, r, assignment, CleanupFinalizer); err != nil {
		return r.fail(log, assignment, metrics.ActionCreate, fmt.Errorf("failed to add finalizer: %w", err))
	}

	if err := r.workflow.CreateDeployment(ctx, workload, assignment); err != nil {
		return r.fail(log, assignment, metrics.ActionCreate, fmt.Errorf("failed to create deployment: %w", err))
	}

	metrics.Reconciliations.WithLabelValues(metrics.ActionCreate, metrics.ResultSuccess).Inc()
	log.Debug("Deployment is up-to-date")

	return reconcile.Result{RequeueAfter: r.syncInterval}, nil
}

// handleDeletion removes the assignment's manifests from the repository
// and then releases the finalizer.
func (r *Reconciler) handleDeletion(ctx context.Context, log *zap.SugaredLogger, assignment *workloadv1alpha1.WorkloadAssignment) (reconcile.Result, error) {
	if !kuberneteshelper.HasFinalizer(assignment, CleanupFinalizer) {
		// nothing was ever materialized for this assignment
		return reconcile.Result{}, nil
	}

	if err := r.workflow.DeleteDeployment(ctx, assignment); err != nil {
		return r.fail(log, assignment, metrics.ActionDelete, fmt.Errorf("failed to delete deployment: %w", err))
	}

	if err := kuberneteshelper.TryRemoveFinalizer(ctx, r, assignment, CleanupFinalizer); err != nil {
		return r.fail(log, assignment, metrics.ActionDelete, fmt.Errorf("failed to remove finalizer: %w", err))
	}

	metrics.Reconciliations.WithLabelValues(metrics.ActionDelete, metrics.ResultSuccess).Inc()
	log.Debug("Deployment removed")

	return reconcile.Result{}, nil
}

// fail records the error and schedules a retry after the fixed backoff.
// The error is swallowed on purpose so that controller-runtime's
// exponential backoff does not override the interval.
func (r *Reconciler) fail(log *zap.SugaredLogger, assignment *workloadv1alpha1.WorkloadAssignment, action string, err error) (reconcile.Result, error) {
	metrics.Reconciliations.WithLabelValues(action, metrics.ResultError).Inc()
	if gitops.IsRetryable(err) {
		metrics.PushConflicts.Inc()
	}

	log.Errorw("Reconciliation failed", zap.Error(err))
	r.recorder.Event(assignment, corev1.EventTypeWarning, "ReconcilingError", err.Error())

	return reconcile.Result{RequeueAfter: r.errorBackoff}, nil
}
