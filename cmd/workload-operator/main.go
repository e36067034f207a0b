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

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"
	workloadassignmentcontroller "k8c.io/workload-operator/pkg/controller/workloadassignment"
	"k8c.io/workload-operator/pkg/gitops"
	operatorlog "k8c.io/workload-operator/pkg/log"

	"k8s.io/klog/v2"
	ctrlruntime "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	ctrlruntimelog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
)

const (
	controllerName = "workload-operator"
)

type controllerRunOptions struct {
	internalAddr            string
	enableLeaderElection    bool
	leaderElectionNamespace string
	namespace               string
	workerCount             int

	repositoryURL    string
	repositoryBranch string
	credentialsFile  string
	configFile       string
	syncInterval     time.Duration
	errorBackoff     time.Duration
}

// operatorConfiguration is the optional YAML configuration file. It
// carries the settings that are too unwieldy for flags, most notably
// the platform-wide default values applied to every rendered template.
type operatorConfiguration struct {
	CommitterName    string            `yaml:"committerName"`
	CommitterEmail   string            `yaml:"committerEmail"`
	PlatformDefaults map[string]string `yaml:"platformDefaults"`
}

func main() {
	runOpts := controllerRunOptions{}
	klog.InitFlags(nil)
	logOpts := operatorlog.NewDefaultOptions()
	logOpts.AddFlags(flag.CommandLine)
	flag.StringVar(&runOpts.namespace, "namespace", "", "The namespace to watch WorkloadAssignments in; all namespaces if empty.")
	flag.IntVar(&runOpts.workerCount, "worker-count", 4, "Number of workers which process the assignments in parallel.")
	flag.StringVar(&runOpts.internalAddr, "internal-address", "127.0.0.1:8085", "The address on which the /metrics endpoint will be served.")
	flag.BoolVar(&runOpts.enableLeaderElection, "enable-leader-election", true, "Enable leader election for controller manager. "+
		"Enabling this will ensure there is only one active controller manager.")
	flag.StringVar(&runOpts.leaderElectionNamespace, "leader-election-namespace", "", "Leader election namespace. In-cluster discovery will be attempted in such case.")
	flag.StringVar(&runOpts.repositoryURL, "gitops-repo-url", "", "URL of the GitOps repository that receives the rendered manifests.")
	flag.StringVar(&runOpts.repositoryBranch, "gitops-branch", gitops.DefaultBranch, "Branch of the GitOps repository to commit to.")
	flag.StringVar(&runOpts.credentialsFile, "git-credentials-file", "", "Path to a file holding either an access token (for HTTP remotes) or an SSH private key.")
	flag.StringVar(&runOpts.configFile, "config-file", "", "Path to an optional YAML file with committer identity and platform-wide default values.")
	flag.DurationVar(&runOpts.syncInterval, "sync-interval", 60*time.Second, "How often a healthy assignment is reconciled again.")
	flag.DurationVar(&runOpts.errorBackoff, "error-backoff", 5*time.Second, "Delay before a failed reconciliation is retried.")
	flag.Parse()

	if err := logOpts.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rawLog := operatorlog.New(logOpts.Debug, logOpts.Format)
	log := rawLog.Sugar()
	operatorlog.Logger = log

	// Set the logger used by sigs.k8s.io/controller-runtime
	ctrlruntimelog.SetLogger(zapr.NewLogger(rawLog.WithOptions(zap.AddCallerSkip(1))))

	if runOpts.repositoryURL == "" {
		log.Fatal("-gitops-repo-url must be set")
	}

	config := &operatorConfiguration{}
	if runOpts.configFile != "" {
		var err error
		if config, err = loadOperatorConfiguration(runOpts.configFile); err != nil {
			log.Fatalw("invalid configuration file", zap.Error(err))
		}
	}

	ctx := signals.SetupSignalHandler()

	mgrOptions := manager.Options{
		LeaderElection:          runOpts.enableLeaderElection,
		LeaderElectionNamespace: runOpts.leaderElectionNamespace,
		LeaderElectionID:        controllerName + "-leader-election",
		Metrics:                 metricsserver.Options{BindAddress: runOpts.internalAddr},
	}
	if runOpts.namespace != "" {
		mgrOptions.Cache = cache.Options{
			DefaultNamespaces: map[string]cache.Config{runOpts.namespace: {}},
		}
	}

	mgr, err := manager.New(ctrlruntime.GetConfigOrDie(), mgrOptions)
	if err != nil {
		log.Fatalw("failed to create Controller Manager instance", zap.Error(err))
	}

	if err := workloadv1alpha1.AddToScheme(mgr.GetScheme()); err != nil {
		log.Fatalw("Failed to register scheme", zap.Stringer("api", workloadv1alpha1.SchemeGroupVersion), zap.Error(err))
	}

	auth, err := gitops.NewAuthMethod(runOpts.repositoryURL, runOpts.credentialsFile)
	if err != nil {
		log.Fatalw("failed to set up Git authentication", zap.Error(err))
	}

	workflow, err := gitops.NewWorkflow(log, gitops.Options{
		RepositoryURL:    runOpts.repositoryURL,
		Branch:           runOpts.repositoryBranch,
		Auth:             auth,
		CommitterName:    config.CommitterName,
		CommitterEmail:   config.CommitterEmail,
		PlatformDefaults: config.PlatformDefaults,
	})
	if err != nil {
		log.Fatalw("failed to set up GitOps workflow", zap.Error(err))
	}

	if err := workloadassignmentcontroller.Add(mgr, runOpts.workerCount, log, workflow, workloadassignmentcontroller.Options{
		SyncInterval: runOpts.syncInterval,
		ErrorBackoff: runOpts.errorBackoff,
	}); err != nil {
		log.Fatalw("could not create all controllers", zap.Error(err))
	}

	log.Info("starting the workload-operator...")
	if err := mgr.Start(ctx); err != nil {
		log.Fatalw("problem running manager", zap.Error(err))
	}
}

func loadOperatorConfiguration(filename string) (*operatorConfiguration, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	config := &operatorConfiguration{}
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse file as YAML: %w", err)
	}

	return config, nil
}
