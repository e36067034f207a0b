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
	"fmt"

	"dario.cat/mergo"
)

// mergeValues flattens the given value layers into a single template
// value set. Layers are applied in increasing precedence, i.e. a key in
// a later layer overrides the same key in any earlier layer. Nil layers
// are allowed and skipped.
func mergeValues(layers ...map[string]string) (map[string]string, error) {
	merged := map[string]string{}

	for _, layer := range layers {
		if layer == nil {
			continue
		}

		if err := mergo.Merge(&merged, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge value layers: %w", err)
		}
	}

	return merged, nil
}
