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
	"os"
	"path/filepath"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// KustomizationFileName is the aggregation manifest consumed by the
// downstream sync agent.
const KustomizationFileName = "kustomization.yaml"

// commonResource is referenced from every cluster kustomization; it
// carries the shared per-cluster base manifests.
const commonResource = "../common"

// reservedEntries are directories owned by the GitOps sync agent itself
// and must never be listed as workload resources.
var reservedEntries = sets.New("flux-system")

// Link regenerates the aggregation manifest of the given cluster
// directory. Every immediate subdirectory except the reserved ones is
// listed as a resource, in directory-listing order. Any previous
// manifest is fully overwritten; there is no merge.
//
// The manifest is hand-formatted instead of going through a YAML
// encoder because the downstream sync agent compares it byte for byte.
func Link(clusterDir string) error {
	entries, err := os.ReadDir(clusterDir)
	if err != nil {
		return fmt.Errorf("failed to read cluster directory: %w", err)
	}

	resources := []string{commonResource}

	for _, entry := range entries {
		if entry.IsDir() && !reservedEntries.Has(entry.Name()) {
			resources = append(resources, entry.Name())
		}
	}

	manifest := &strings.Builder{}
	manifest.WriteString("apiVersion: kustomize.config.k8s.io/v1beta1\n")
	manifest.WriteString("kind: Kustomization\n")
	manifest.WriteString("resources:\n")

	for _, resource := range resources {
		fmt.Fprintf(manifest, "    - %s\n", resource)
	}

	if err := os.WriteFile(filepath.Join(clusterDir, KustomizationFileName), []byte(manifest.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", KustomizationFileName, err)
	}

	return nil
}
