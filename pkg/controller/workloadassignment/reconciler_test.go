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

package workloadassignment

import (
	"context"
	"errors"
	"testing"
	"time"

	workloadv1alpha1 "k8c.io/workload-operator/pkg/apis/workload/v1alpha1"
	kuberneteshelper "k8c.io/workload-operator/pkg/kubernetes"
	"k8c.io/workload-operator/pkg/log"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

const (
	testNamespace      = "default"
	testWorkloadName   = "myworkload"
	testAssignmentName = "myworkload"
	testSyncInterval   = 60 * time.Second
	testErrorBackoff   = 5 * time.Second
)

// fakeWorkflow records the Git operations the reconciler asked for.
type fakeWorkflow struct {
	creates int
	deletes int

	createErr error
	deleteErr error
}

func (f *fakeWorkflow) CreateDeployment(_ context.Context, _ *workloadv1alpha1.Workload, _ *workloadv1alpha1.WorkloadAssignment) error {
	f.creates++
	return f.createErr
}

func (f *fakeWorkflow) DeleteDeployment(_ context.Context, _ *workloadv1alpha1.WorkloadAssignment) error {
	f.deletes++
	return f.deleteErr
}

func newTestScheme(t *testing.T) *runtime.Scheme {
	t.Helper()

	testScheme := runtime.NewScheme()
	if err := scheme.AddToScheme(testScheme); err != nil {
		t.Fatalf("failed to build scheme: %v", err)
	}
	if err := workloadv1alpha1.AddToScheme(testScheme); err != nil {
		t.Fatalf("failed to register workload types: %v", err)
	}

	return testScheme
}

func generateWorkload() *workloadv1alpha1.Workload {
	return &workloadv1alpha1.Workload{
		ObjectMeta: metav1.ObjectMeta{
			Name:      testWorkloadName,
			Namespace: testNamespace,
		},
		Spec: workloadv1alpha1.WorkloadSpec{
			Template: workloadv1alpha1.TemplateSpec{
				Source: "https://git.example.com/templates.git",
				Path:   "templates/deploy",
			},
		},
	}
}

func generateAssignment(deleted bool, finalizers ...string) *workloadv1alpha1.WorkloadAssignment {
	assignment := &workloadv1alpha1.WorkloadAssignment{
		ObjectMeta: metav1.ObjectMeta{
			Name:       testAssignmentName,
			Namespace:  testNamespace,
			Finalizers: finalizers,
		},
		Spec: workloadv1alpha1.WorkloadAssignmentSpec{
			Workload: testWorkloadName,
			Cluster:  "az-eastus2-1",
		},
	}
	if deleted {
		deleteTime := metav1.NewTime(time.Now())
		assignment.DeletionTimestamp = &deleteTime
	}
	return assignment
}

func TestReconcileRejectsAssignmentWithoutNamespace(t *testing.T) {
	ctx := context.Background()

	assignment := generateAssignment(false)
	assignment.Namespace = ""

	client := fake.
		NewClientBuilder().
		WithScheme(newTestScheme(t)).
		WithObjects(assignment).
		Build()

	workflow := &fakeWorkflow{}
	r := &Reconciler{
		Client:       client,
		log:          log.Logger,
		recorder:     &record.FakeRecorder{Events: make(chan string, 10)},
		workflow:     workflow,
		syncInterval: testSyncInterval,
		errorBackoff: testErrorBackoff,
	}

	request := reconcile.Request{NamespacedName: types.NamespacedName{Name: testAssignmentName}}
	result, err := r.Reconcile(ctx, request)
	if err != nil {
		t.Fatalf("reconciling failed: %v", err)
	}

	if result.RequeueAfter != testErrorBackoff {
		t.Errorf("expected error backoff requeue, got %+v", result)
	}
	if workflow.creates != 0 || workflow.deletes != 0 {
		t.Error("expected no Git operations for an unscoped assignment")
	}

	current := &workloadv1alpha1.WorkloadAssignment{}
	if err := client.Get(ctx, request.NamespacedName, current); err != nil {
		t.Fatalf("failed to get assignment: %v", err)
	}
	if kuberneteshelper.HasFinalizer(current, CleanupFinalizer) {
		t.Error("expected no finalizer on an unscoped assignment")
	}
}

func TestReconcile(t *testing.T) {
	testCases := []struct {
		name               string
		objects            []ctrlruntimeclient.Object
		workflow           *fakeWorkflow
		expectedResult     reconcile.Result
		expectedCreates    int
		expectedDeletes    int
		expectFinalizer    bool
		expectGone         bool
		expectReconcileErr bool
	}{
		{
			name:            "fresh assignment is materialized and gets the finalizer",
			objects:         []ctrlruntimeclient.Object{generateWorkload(), generateAssignment(false)},
			workflow:        &fakeWorkflow{},
			expectedResult:  reconcile.Result{RequeueAfter: testSyncInterval},
			expectedCreates: 1,
			expectFinalizer: true,
		},
		{
			name:            "healthy assignment is re-synced on every pass",
			objects:         []ctrlruntimeclient.Object{generateWorkload(), generateAssignment(false, CleanupFinalizer)},
			workflow:        &fakeWorkflow{},
			expectedResult:  reconcile.Result{RequeueAfter: testSyncInterval},
			expectedCreates: 1,
			expectFinalizer: true,
		},
		{
			name:           "missing workload fails before the finalizer is added",
			objects:        []ctrlruntimeclient.Object{generateAssignment(false)},
			workflow:       &fakeWorkflow{},
			expectedResult: reconcile.Result{RequeueAfter: testErrorBackoff},
		},
		{
			name:            "failed materialization keeps the finalizer and backs off",
			objects:         []ctrlruntimeclient.Object{generateWorkload(), generateAssignment(false)},
			workflow:        &fakeWorkflow{createErr: errors.New("clone failed")},
			expectedResult:  reconcile.Result{RequeueAfter: testErrorBackoff},
			expectedCreates: 1,
			expectFinalizer: true,
		},
		{
			name:            "deleted assignment is dematerialized and released",
			objects:         []ctrlruntimeclient.Object{generateWorkload(), generateAssignment(true, CleanupFinalizer)},
			workflow:        &fakeWorkflow{},
			expectedResult:  reconcile.Result{},
			expectedDeletes: 1,
			expectGone:      true,
		},
		{
			name:           "deleted assignment without the finalizer is ignored",
			objects:        []ctrlruntimeclient.Object{generateAssignment(true, "unrelated.example.com/finalizer")},
			workflow:       &fakeWorkflow{},
			expectedResult: reconcile.Result{},
		},
		{
			name:            "failed dematerialization keeps the finalizer and backs off",
			objects:         []ctrlruntimeclient.Object{generateAssignment(true, CleanupFinalizer)},
			workflow:        &fakeWorkflow{deleteErr: errors.New("push failed")},
			expectedResult:  reconcile.Result{RequeueAfter: testErrorBackoff},
			expectedDeletes: 1,
			expectFinalizer: true,
		},
		{
			name:           "vanished assignment is a no-op",
			objects:        nil,
			workflow:       &fakeWorkflow{},
			expectedResult: reconcile.Result{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()

			client := fake.
				NewClientBuilder().
				WithScheme(newTestScheme(t)).
				WithObjects(tc.objects...).
				Build()

			r := &Reconciler{
				Client:       client,
				log:          log.Logger,
				recorder:     &record.FakeRecorder{Events: make(chan string, 10)},
				workflow:     tc.workflow,
				syncInterval: testSyncInterval,
				errorBackoff: testErrorBackoff,
			}

			request := reconcile.Request{NamespacedName: types.NamespacedName{Namespace: testNamespace, Name: testAssignmentName}}
			result, err := r.Reconcile(ctx, request)
			if tc.expectReconcileErr != (err != nil) {
				t.Fatalf("expected reconcile error %v, got %v", tc.expectReconcileErr, err)
			}

			if result != tc.expectedResult {
				t.Errorf("expected result %+v, got %+v", tc.expectedResult, result)
			}

			if tc.workflow.creates != tc.expectedCreates {
				t.Errorf("expected %d create calls, got %d", tc.expectedCreates, tc.workflow.creates)
			}
			if tc.workflow.deletes != tc.expectedDeletes {
				t.Errorf("expected %d delete calls, got %d", tc.expectedDeletes, tc.workflow.deletes)
			}

			assignment := &workloadv1alpha1.WorkloadAssignment{}
			getErr := client.Get(ctx, request.NamespacedName, assignment)

			if tc.expectGone {
				if !apierrors.IsNotFound(getErr) {
					t.Fatalf("expected assignment to be gone, got err=%v", getErr)
				}
				return
			}

			if len(tc.objects) > 0 {
				if getErr != nil {
					t.Fatalf("failed to get assignment: %v", getErr)
				}
				if hasFinalizer := kuberneteshelper.HasFinalizer(assignment, CleanupFinalizer); hasFinalizer != tc.expectFinalizer {
					t.Errorf("expected finalizer presence %v, got %v (finalizers: %v)", tc.expectFinalizer, hasFinalizer, assignment.Finalizers)
				}
			}
		})
	}
}
