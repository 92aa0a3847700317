package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a reference points at nothing.
var ErrNotFound = errors.New("artifact not found")

// StorageInterface is where accepted artifacts are promoted to. It satisfies
// acquisition.ArtifactSink.
type StorageInterface interface {
	// Backend names the implementation, e.g. "local" or "s3".
	Backend() string
	// Store moves the file at path under key and returns a reference to it.
	Store(ctx context.Context, key, path, contentType string, metadata map[string]string) (string, error)
	Download(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	Ping(ctx context.Context) error
}
