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
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// NewAuthMethod builds the transport credential for the given repository
// URL from the configured credential file. HTTP(S) remotes expect the
// file to contain an access token, everything else is treated as an SSH
// private key. An empty file name yields anonymous access, which is
// useful for local repositories in tests.
func NewAuthMethod(repoURL, credentialsFile string) (transport.AuthMethod, error) {
	if credentialsFile == "" {
		return nil, nil
	}

	if strings.HasPrefix(repoURL, "http://") || strings.HasPrefix(repoURL, "https://") {
		token, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read access token: %w", err)
		}

		return &githttp.BasicAuth{
			// the username is required but not interpreted when a
			// token is used
			Username: "git",
			Password: strings.TrimSpace(string(token)),
		}, nil
	}

	keys, err := gitssh.NewPublicKeysFromFile("git", credentialsFile, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH private key: %w", err)
	}

	return keys, nil
}
