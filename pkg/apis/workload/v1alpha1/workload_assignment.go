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

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// WorkloadAssignmentResourceName represents "Resource" defined in Kubernetes.
	WorkloadAssignmentResourceName = "workloadassignments"

	// WorkloadAssignmentKind represents "Kind" defined in Kubernetes.
	WorkloadAssignmentKind = "WorkloadAssignment"
)

// +kubebuilder:resource:scope=Namespaced
// +kubebuilder:object:generate=true
// +kubebuilder:object:root=true
// +kubebuilder:printcolumn:JSONPath=".spec.workload",name="Workload",type="string"
// +kubebuilder:printcolumn:JSONPath=".spec.cluster",name="Cluster",type="string"
// +kubebuilder:printcolumn:JSONPath=".metadata.creationTimestamp",name="Age",type="date"

// WorkloadAssignment binds a single workload to a single target cluster.
// The assignment controller materializes the workload's rendered
// deployment template into the GitOps repository path
// "<cluster>/<assignment name>" and keeps it in sync with this resource.
type WorkloadAssignment struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec WorkloadAssignmentSpec `json:"spec,omitempty"`
}

// WorkloadAssignmentSpec specifies which workload is deployed onto
// which cluster.
type WorkloadAssignmentSpec struct {
	// Workload is the name of the Workload resource in the same
	// namespace as this assignment.
	Workload string `json:"workload"`

	// Cluster is the identifier of the target cluster. It is also the
	// top-level directory of the rendered artifacts in the GitOps
	// repository.
	Cluster string `json:"cluster"`

	// Environment selects the workload's per-environment value
	// overrides, e.g. "dev" or "prod".
	Environment string `json:"environment,omitempty"`

	// Values are assignment-level template value overrides. They take
	// precedence over all workload-level values.
	Values map[string]string `json:"values,omitempty"`
}

// +kubebuilder:object:generate=true
// +kubebuilder:object:root=true

// WorkloadAssignmentList is a list of workload assignments.
type WorkloadAssignmentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []WorkloadAssignment `json:"items"`
}
