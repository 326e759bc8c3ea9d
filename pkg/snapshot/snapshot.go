// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot stores exported embedding sets so a vector store can be
// rebuilt without calling the embedding provider again.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/leseb/quizsearch/pkg/provider"
)

// ErrNotFound is returned when a snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// ErrInvalidName is returned for names rejected by ValidateName.
var ErrInvalidName = errors.New("invalid snapshot name")

// Providers is the registry of snapshot store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/quizsearch/pkg/snapshot/memory"
//	import _ "github.com/leseb/quizsearch/pkg/snapshot/filesystem"
//	import _ "github.com/leseb/quizsearch/pkg/snapshot/s3"
var Providers = provider.NewRegistry[Store]("snapshot")

// Info describes a stored snapshot.
type Info struct {
	Name      string    `json:"name"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a flat namespace of named blobs.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns all snapshots, newest first.
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

// ValidateName rejects names that could escape a backend's namespace.
func ValidateName(name string) error {
	if name == "" || len(name) > 200 {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	return nil
}
