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

// Package workloadassignment contains the controller that turns
// WorkloadAssignment objects into manifests in the GitOps repository.
//
// Every WorkloadAssignment carries a finalizer while its manifests exist
// in the repository, so that a deleted assignment is guaranteed to be
// cleaned up before the object disappears from the cluster.
package workloadassignment

import (
	"time"

	"go.uber.org/zap"

	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/controller"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"
)

const (
	// ControllerName is the name of this very controller.
	ControllerName = "workload-assignment-controller"

	// CleanupFinalizer is put on WorkloadAssignments to ensure the
	// generated manifests are removed from the GitOps repository
	// before the object is deleted.
	CleanupFinalizer = "workload.k8c.io/cleanup-deployment"

	// defaultSyncInterval is how often a healthy assignment is
	// reconciled again to catch template or values drift.
	defaultSyncInterval = 60 * time.Second

	// defaultErrorBackoff is the delay before a failed reconciliation
	// is attempted again.
	defaultErrorBackoff = 5 * time.Second
)

// Options configures the reconciliation loop.
type Options struct {
	// SyncInterval overrides the steady-state requeue interval.
	SyncInterval time.Duration

	// ErrorBackoff overrides the retry delay after failures.
	ErrorBackoff time.Duration
}

// Add creates a new workload assignment controller and adds it to the
// given manager.
func Add(
	mgr manager.Manager,
	numWorkers int,
	log *zap.SugaredLogger,
	workflow Workflow,
	opt Options,
) error {
	if opt.SyncInterval <= 0 {
		opt.SyncInterval = defaultSyncInterval
	}
	if opt.ErrorBackoff <= 0 {
		opt.ErrorBackoff = defaultErrorBackoff
	}

	reconciler := &Reconciler{
		Client:       mgr.GetClient(),
		log:          log.Named(ControllerName),
		recorder:     mgr.GetEventRecorderFor(ControllerName),
		workflow:     workflow,
		syncInterval: opt.SyncInterval,
		errorBackoff: opt.ErrorBackoff,
	}

	_, err := builder.ControllerManagedBy(mgr).
		Named(ControllerName).
		WithOptions(controller.Options{MaxConcurrentReconciles: numWorkers}).
		For(&workloadv1alpha1.WorkloadAssignment{}).
		Build(reconciler)

	return err
}
