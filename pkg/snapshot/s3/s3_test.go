// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/leseb/quizsearch/pkg/snapshot"
	snaps3 "github.com/leseb/quizsearch/pkg/snapshot/s3"
	"github.com/leseb/quizsearch/pkg/snapshot/snapshottest"
)

func TestS3Conformance(t *testing.T) {
	bucket := os.Getenv("SNAPSHOT_S3_BUCKET")
	endpoint := os.Getenv("SNAPSHOT_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("Skipping S3 conformance tests: SNAPSHOT_S3_BUCKET and SNAPSHOT_S3_ENDPOINT must be set (e.g. with MinIO)")
	}

	region := os.Getenv("SNAPSHOT_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	snapshottest.RunConformanceTests(t, func(t *testing.T) snapshot.Store {
		store, err := snaps3.New(context.Background(), snaps3.Options{
			Bucket:   bucket,
			Region:   region,
			Prefix:   "test-" + t.Name() + "/",
			Endpoint: endpoint,
		})
		if err != nil {
			t.Fatalf("s3.New: %v", err)
		}
		return store
	})
}
