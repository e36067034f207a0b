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
	"errors"
	"fmt"
	"strings"
)

// RepositoryError wraps a failed Git operation. Retryable errors, most
// importantly a push rejected for not being a fast-forward, are expected
// to succeed on a later reconciliation that starts from a fresh clone.
type RepositoryError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// TemplateError wraps a template that could not be parsed or rendered,
// e.g. because it references an unresolved variable. These errors are
// permanent until the template or the values change.
type TemplateError struct {
	Path string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("failed to render template %s: %v", e.Path, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the given error is a conflict-style
// repository error that a full retry from a fresh clone can resolve.
func IsRetryable(err error) bool {
	repoErr := &RepositoryError{}
	return errors.As(err, &repoErr) && repoErr.Retryable
}

// classifyPushError maps a go-git push failure onto a RepositoryError.
// The remote's fast-forward check is the sole concurrency gate of the
// whole workflow, so a rejected update is flagged as retryable.
func classifyPushError(err error) *RepositoryError {
	return &RepositoryError{
		Op:        "push",
		Retryable: strings.Contains(err.Error(), "non-fast-forward"),
		Err:       err,
	}
}
