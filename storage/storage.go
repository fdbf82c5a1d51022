// Package storage defines the pluggable resource store contract and its
// backend selection. Two backends exist: memstore keeps the tree in process
// memory, kvstore persists it in NATS JetStream KV buckets.
package storage

import (
	"context"

	"github.com/c360/cse/resource"
)

// Store is the resource persistence contract. Identifiers passed to
// RetrieveResource may be unstructured resource identifiers or structured
// paths. Implementations report absent resources via errors.ErrResourceNotFound
// and duplicates via errors.ErrResourceExists, and must be safe for concurrent
// use.
type Store interface {
	RetrieveResource(ctx context.Context, id string) (*resource.Resource, error)
	DirectChildResources(ctx context.Context, pi string, ty resource.Type) ([]*resource.Resource, error)
	HasResource(ctx context.Context, ri, srn string) (bool, error)
	CreateResource(ctx context.Context, r *resource.Resource, overwrite bool) error
	UpdateResource(ctx context.Context, r *resource.Resource) error
	DeleteResource(ctx context.Context, r *resource.Resource) error
	CountResources(ctx context.Context) (int, error)
	RetrieveResourcesByType(ctx context.Context, ty resource.Type) ([]*resource.Resource, error)
}

// Backend names a storage implementation.
type Backend string

const (
	// BackendMemory selects the in-memory store.
	BackendMemory Backend = "memory"
	// BackendKV selects the NATS JetStream KV store.
	BackendKV Backend = "kv"
)

// Config selects and parameterizes the storage backend.
type Config struct {
	Backend Backend `yaml:"backend"`
	// BucketPrefix prefixes the KV bucket names, isolating multiple CSEs on
	// one JetStream domain.
	BucketPrefix string `yaml:"bucketPrefix"`
}

// DefaultConfig returns the storage defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendMemory,
		BucketPrefix: "cse",
	}
}
