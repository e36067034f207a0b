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

// Package kubernetes contains helpers for working with the lifecycle
// metadata of Kubernetes objects, most importantly the cleanup
// finalizers that guard the GitOps artifacts owned by an assignment.
package kubernetes

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/retry"
	ctrlruntimeclient "sigs.k8s.io/controller-runtime/pkg/client"
)

// HasFinalizer tells if a object has all the given finalizers.
func HasFinalizer(o metav1.Object, names ...string) bool {
	return sets.New(o.GetFinalizers()...).HasAll(names...)
}

// HasAnyFinalizer tells if a object has any of the given finalizers.
func HasAnyFinalizer(o metav1.Object, names ...string) bool {
	return sets.New(o.GetFinalizers()...).HasAny(names...)
}

// AddFinalizer will add the given finalizer to the object. It uses a StringSet to avoid duplicates.
func AddFinalizer(obj metav1.Object, finalizers ...string) {
	set := sets.New(obj.GetFinalizers()...)
	set.Insert(finalizers...)
	obj.SetFinalizers(sets.List(set))
}

// RemoveFinalizer removes the given finalizers from the object.
func RemoveFinalizer(obj metav1.Object, toRemove ...string) {
	set := sets.New(obj.GetFinalizers()...)
	set.Delete(toRemove...)
	obj.SetFinalizers(sets.List(set))
}

// TryAddFinalizer patches the given object to ensure the finalizers are
// present. It is a no-op if the object already carries them all and
// retries on patch conflicts. The object is assumed to exist; callers
// are expected to have just read it.
func TryAddFinalizer(ctx context.Context, client ctrlruntimeclient.Client, obj ctrlruntimeclient.Object, finalizers ...string) error {
	key := ctrlruntimeclient.ObjectKeyFromObject(obj)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := client.Get(ctx, key, obj); err != nil {
			return err
		}

		// cannot add new finalizers to deleted objects
		if obj.GetDeletionTimestamp() != nil {
			return nil
		}

		original := obj.DeepCopyObject().(ctrlruntimeclient.Object)

		previous := sets.New(obj.GetFinalizers()...)
		AddFinalizer(obj, finalizers...)
		current := sets.New(obj.GetFinalizers()...)

		// save some work
		if previous.Equal(current) {
			return nil
		}

		return client.Patch(ctx, obj, ctrlruntimeclient.MergeFromWithOptions(original, ctrlruntimeclient.MergeFromWithOptimisticLock{}))
	})

	if err != nil {
		kind := obj.GetObjectKind().GroupVersionKind().Kind
		return fmt.Errorf("failed to add finalizers %v to %s %s: %w", finalizers, kind, key, err)
	}

	return nil
}

// TryRemoveFinalizer patches the given object to ensure the finalizers
// are absent. It is a no-op if none of the finalizers are present and
// retries on patch conflicts.
func TryRemoveFinalizer(ctx context.Context, client ctrlruntimeclient.Client, obj ctrlruntimeclient.Object, finalizers ...string) error {
	key := ctrlruntimeclient.ObjectKeyFromObject(obj)

	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if err := client.Get(ctx, key, obj); err != nil {
			// finalizer removal normally happens during object cleanup, so if
			// the object is gone already, that is absolutely fine
			if apierrors.IsNotFound(err) {
				return nil
			}
			return err
		}

		original := obj.DeepCopyObject().(ctrlruntimeclient.Object)

		previous := sets.New(obj.GetFinalizers()...)
		RemoveFinalizer(obj, finalizers...)
		current := sets.New(obj.GetFinalizers()...)

		// save some work
		if previous.Equal(current) {
			return nil
		}

		return client.Patch(ctx, obj, ctrlruntimeclient.MergeFromWithOptions(original, ctrlruntimeclient.MergeFromWithOptimisticLock{}))
	})

	if err != nil {
		kind := obj.GetObjectKind().GroupVersionKind().Kind
		return fmt.Errorf("failed to remove finalizers %v from %s %s: %w", finalizers, kind, key, err)
	}

	return nil
}
