// Package store defines the remote artifact namespace: the artifact naming
// scheme and the Store interface implemented by the backends.
package store

import (
	"context"
	"io"
)

// Dir is the directory, relative to the backend root, holding artifacts.
const Dir = "snapshots"

// Store is a flat namespace of artifact files.
type Store interface {
	// Upload writes r to Dir/name and returns the number of bytes stored.
	Upload(ctx context.Context, name string, r io.Reader) (int64, error)
	// List returns artifact file names in Dir in one round trip.
	List(ctx context.Context) ([]string, error)
	// Remove deletes Dir/name. Removing a missing artifact is not an error.
	Remove(ctx context.Context, name string) error
	// String describes the backend for progress output.
	String() string
	Close() error
}
