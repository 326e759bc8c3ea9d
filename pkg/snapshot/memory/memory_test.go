// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package memory_test

import (
	"testing"

	"github.com/leseb/quizsearch/pkg/snapshot"
	"github.com/leseb/quizsearch/pkg/snapshot/memory"
	"github.com/leseb/quizsearch/pkg/snapshot/snapshottest"
)

func TestMemoryConformance(t *testing.T) {
	snapshottest.RunConformanceTests(t, func(t *testing.T) snapshot.Store {
		return memory.New()
	})
}
