package acquisition

import "context"

// MediaResolver lists and fetches the variants of a remote resource.
type MediaResolver interface {
	// ListFormats returns the catalog for a source. An error or an empty
	// catalog is not fatal to a request.
	ListFormats(ctx context.Context, sourceID string) (*Catalog, error)

	// Fetch downloads the variant chosen by spec. destHint is a path without
	// extension; the resolver appends the real container and returns the
	// path it wrote. ctx carries the per-attempt time budget.
	Fetch(ctx context.Context, sourceID string, spec CandidateSpec, destHint string) (string, error)
}

// PlaceholderEncoder renders placeholder media. It is optional.
type PlaceholderEncoder interface {
	EncodeSilentAudio(ctx context.Context, durationSeconds int, destination string) error
	EncodeColorVideo(ctx context.Context, durationSeconds int, destination string) error
}

// TempStore hands out request-scoped working directories.
type TempStore interface {
	Acquire(key string) (string, error)
	Release(dir string) error
}

// ArtifactSink is where accepted artifacts are promoted to. It returns the
// final artifact reference.
type ArtifactSink interface {
	Store(ctx context.Context, key, path, contentType string, metadata map[string]string) (string, error)
}
