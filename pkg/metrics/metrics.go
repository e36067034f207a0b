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

// Package metrics exposes the operator's own Prometheus metrics. They
// are served through the manager's metrics endpoint alongside the
// controller-runtime defaults.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	ctrlruntimemetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	// ActionCreate labels reconciliations that materialize manifests.
	ActionCreate = "create"
	// ActionDelete labels reconciliations that remove manifests.
	ActionDelete = "delete"

	// ResultSuccess labels reconciliations that completed.
	ResultSuccess = "success"
	// ResultError labels reconciliations that will be retried.
	ResultError = "error"
)

var (
	// Reconciliations counts finished reconciliations by action and result.
	Reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workload_operator_reconciliations_total",
		Help: "Number of finished WorkloadAssignment reconciliations by action and result.",
	}, []string{"action", "result"})

	// PushConflicts counts pushes rejected by the remote's fast-forward check.
	PushConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workload_operator_push_conflicts_total",
		Help: "Number of Git pushes rejected because another writer committed first.",
	})
)

func init() {
	ctrlruntimemetrics.Registry.MustRegister(
		Reconciliations,
		PushConflicts,
	)
}
