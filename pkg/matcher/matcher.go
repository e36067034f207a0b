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

// Package matcher evaluates workload assignment rules against clusters.
// Rules are compiled once and can then be matched against any number of
// cluster snapshots.
package matcher

import (
	"fmt"
	"regexp"
	"sort"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"
)

// Cluster is an immutable snapshot of a target cluster as observed at
// match time.
type Cluster struct {
	Name   string
	Labels map[string]string
}

// LabelMatcher matches a single cluster label against a compiled
// regular expression.
type LabelMatcher struct {
	Label      string
	Expression *regexp.Regexp
}

// Matches returns true iff the cluster carries the label and its value
// matches the expression. A missing label is a non-match, never an error.
func (m *LabelMatcher) Matches(cluster *Cluster) bool {
	value, exists := cluster.Labels[m.Label]
	if !exists {
		return false
	}

	return m.Expression.MatchString(value)
}

// RuleMatcher is a compiled AssignmentRule.
type RuleMatcher struct {
	ID             string
	labelMatchers  []LabelMatcher
	maxAssignments *int32
}

// CompileRule compiles all label patterns of the given assignment rule.
// An invalid pattern fails the whole rule.
func CompileRule(rule *workloadv1alpha1.AssignmentRule) (*RuleMatcher, error) {
	matchers := make([]LabelMatcher, 0, len(rule.MatchingLabels))

	for _, matchRule := range rule.MatchingLabels {
		expression, err := regexp.Compile(matchRule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q for label %q in rule %q: %w", matchRule.Pattern, matchRule.Label, rule.ID, err)
		}

		matchers = append(matchers, LabelMatcher{
			Label:      matchRule.Label,
			Expression: expression,
		})
	}

	return &RuleMatcher{
		ID:             rule.ID,
		labelMatchers:  matchers,
		maxAssignments: rule.MaxAssignments,
	}, nil
}

// Matches returns true iff every label matcher of this rule matches the
// cluster. A rule without label matchers matches every cluster.
func (r *RuleMatcher) Matches(cluster *Cluster) bool {
	for i := range r.labelMatchers {
		if !r.labelMatchers[i].Matches(cluster) {
			return false
		}
	}

	return true
}

// Select returns the clusters this rule assigns the workload to. The
// candidates are ordered by cluster name before the MaxAssignments cap
// is applied, so repeated selections over the same candidate set are
// deterministic.
func (r *RuleMatcher) Select(candidates []Cluster) []Cluster {
	sorted := make([]Cluster, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	selected := []Cluster{}
	for i := range sorted {
		if r.maxAssignments != nil && int32(len(selected)) >= *r.maxAssignments {
			break
		}

		if r.Matches(&sorted[i]) {
			selected = append(selected, sorted[i])
		}
	}

	return selected
}
