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
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// hiddenPrefix marks template directory entries that carry repository
// control files. They are never rendered into the output tree.
const hiddenPrefix = "."

// Render recursively mirrors templateDir into outputRoot/outputRel,
// rendering every file as a Go text template with the given values.
// Directories whose name starts with a dot are skipped entirely.
// Existing output files are overwritten, so re-rendering identical
// inputs reproduces byte-identical output.
//
// The returned paths are the rendered files relative to outputRoot,
// slash-separated and in visit order; they are the staging list for the
// subsequent commit.
func Render(templateDir, outputRoot, outputRel string, values map[string]string) ([]string, error) {
	outputPath := filepath.Join(outputRoot, filepath.FromSlash(outputRel))
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	paths := []string{}

	for _, entry := range entries {
		name := entry.Name()
		entryTemplatePath := filepath.Join(templateDir, name)
		entryRel := path.Join(outputRel, name)

		if entry.IsDir() {
			if strings.HasPrefix(name, hiddenPrefix) {
				continue
			}

			subpaths, err := Render(entryTemplatePath, outputRoot, entryRel, values)
			if err != nil {
				return nil, err
			}
			paths = append(paths, subpaths...)

			continue
		}

		rendered, err := renderFile(entryTemplatePath, values)
		if err != nil {
			return nil, err
		}

		if err := os.WriteFile(filepath.Join(outputRoot, filepath.FromSlash(entryRel)), rendered, 0644); err != nil {
			return nil, fmt.Errorf("failed to write rendered file: %w", err)
		}

		paths = append(paths, entryRel)
	}

	return paths, nil
}

func renderFile(templatePath string, values map[string]string) ([]byte, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	tpl, err := template.New(filepath.Base(templatePath)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(content))
	if err != nil {
		return nil, &TemplateError{Path: templatePath, Err: err}
	}

	rendered := &bytes.Buffer{}
	if err := tpl.Execute(rendered, values); err != nil {
		return nil, &TemplateError{Path: templatePath, Err: err}
	}

	return rendered.Bytes(), nil
}
