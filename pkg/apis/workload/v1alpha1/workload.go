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
	// WorkloadResourceName represents "Resource" defined in Kubernetes.
	WorkloadResourceName = "workloads"

	// WorkloadKind represents "Kind" defined in Kubernetes.
	WorkloadKind = "Workload"
)

// +kubebuilder:resource:scope=Namespaced
// +kubebuilder:object:generate=true
// +kubebuilder:object:root=true
// +kubebuilder:printcolumn:JSONPath=".spec.template.source",name="TemplateSource",type="string"
// +kubebuilder:printcolumn:JSONPath=".metadata.creationTimestamp",name="Age",type="date"

// Workload describes a deployable unit: where its deployment template
// lives and which clusters it should be assigned to.
type Workload struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec WorkloadSpec `json:"spec,omitempty"`
}

// WorkloadSpec specifies the deployment template sources, assignment
// rules and template values for a workload.
type WorkloadSpec struct {
	// Assignments are the rules that select target clusters for this workload.
	Assignments []AssignmentRule `json:"assignments,omitempty"`

	// Template is the deployment template source rendered into each
	// assigned workload cluster.
	Template TemplateSpec `json:"template"`

	// GlobalTemplate is an optional template source rendered into the
	// control plane clusters.
	GlobalTemplate *TemplateSpec `json:"globalTemplate,omitempty"`

	// Values are workload-level template value overrides. They take
	// precedence over the platform defaults.
	Values map[string]string `json:"values,omitempty"`

	// EnvironmentValues are per-environment template value overrides,
	// keyed by environment name. They take precedence over Values.
	EnvironmentValues map[string]map[string]string `json:"environmentValues,omitempty"`
}

// TemplateSpec describes where a deployment template tree is stored.
type TemplateSpec struct {
	// Method is the fetch method for the template source. Currently
	// only "git" is supported and assumed when empty.
	Method string `json:"method,omitempty"`

	// Source is the URL of the repository containing the template.
	Source string `json:"source"`

	// Reference is the branch, tag or commit to fetch the template at.
	// The remote's default branch is used when empty.
	Reference string `json:"reference,omitempty"`

	// Path is the template directory inside the repository.
	Path string `json:"path"`
}

// AssignmentRule selects a set of target clusters by their labels.
type AssignmentRule struct {
	// ID identifies this rule within the workload.
	ID string `json:"id"`

	// MatchingLabels must all match a cluster for the rule to apply.
	// An empty list matches every cluster.
	MatchingLabels []LabelMatchRule `json:"matchingLabels,omitempty"`

	// MaxAssignments caps how many of the matching clusters are
	// assigned. Unset means all matching clusters.
	MaxAssignments *int32 `json:"maxAssignments,omitempty"`
}

// LabelMatchRule matches a single cluster label against a regular expression.
type LabelMatchRule struct {
	// Label is the cluster label key to inspect. A cluster without
	// this label never matches.
	Label string `json:"label"`

	// Pattern is the regular expression the label value must match.
	Pattern string `json:"pattern"`
}

// +kubebuilder:object:generate=true
// +kubebuilder:object:root=true

// WorkloadList is a list of workloads.
type WorkloadList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`

	Items []Workload `json:"items"`
}
