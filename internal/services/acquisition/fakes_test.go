package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// mp4Bytes looks like an ISO BMFF file to content sniffing.
func mp4Bytes(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom"))
	return b
}

func mhtmlBytes() []byte {
	page := "From: <Saved by Blink>\r\nSnapshot-Content-Location: https://example.com/\r\nSubject: page\r\nMIME-Version: 1.0\r\nContent-Type: multipart/related;\r\n\ttype=\"text/html\";\r\n\tboundary=\"----boundary\"\r\n\r\n"
	for len(page) < 512 {
		page += "<html><body>not media</body></html>\r\n"
	}
	return []byte(page)
}

type fetchResponse struct {
	ext     string
	content []byte
	err     error
	block   bool
}

type fakeResolver struct {
	mu         sync.Mutex
	catalog    *Catalog
	catalogErr error
	responses  map[string]fetchResponse
	calls      []string
}

func (r *fakeResolver) ListFormats(ctx context.Context, sourceID string) (*Catalog, error) {
	if r.catalogErr != nil {
		return nil, r.catalogErr
	}
	return r.catalog, nil
}

func (r *fakeResolver) Fetch(ctx context.Context, sourceID string, spec CandidateSpec, destHint string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, spec.String())
	resp, ok := r.responses[spec.String()]
	r.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("format %s not available", spec)
	}
	if resp.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if resp.err != nil {
		return "", resp.err
	}

	path := destHint + "." + resp.ext
	if err := os.WriteFile(path, resp.content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (r *fakeResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type dirTempStore struct {
	mu       sync.Mutex
	base     string
	failing  bool
	acquired []string
	released []string
}

func newDirTempStore(t *testing.T) *dirTempStore {
	return &dirTempStore{base: t.TempDir()}
}

func (s *dirTempStore) Acquire(key string) (string, error) {
	if s.failing {
		return "", errors.New("read-only file system")
	}
	dir := filepath.Join(s.base, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.acquired = append(s.acquired, dir)
	s.mu.Unlock()
	return dir, nil
}

func (s *dirTempStore) Release(dir string) error {
	s.mu.Lock()
	s.released = append(s.released, dir)
	s.mu.Unlock()
	return os.RemoveAll(dir)
}

// leftovers lists scoped directories still on disk.
func (s *dirTempStore) leftovers() []string {
	entries, _ := os.ReadDir(s.base)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

type memSink struct {
	mu      sync.Mutex
	failing bool
	objects map[string][]byte
	types   map[string]string
}

func newMemSink() *memSink {
	return &memSink{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memSink) Store(ctx context.Context, key, path, contentType string, metadata map[string]string) (string, error) {
	if s.failing {
		return "", errors.New("sink unavailable")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return "mem://" + key, nil
}

type fakeEncoder struct {
	audioErr error
	videoErr error
	calls    []string
	seconds  []int
	// onEncode runs at the start of every encode call.
	onEncode func()
}

func (e *fakeEncoder) EncodeSilentAudio(ctx context.Context, durationSeconds int, destination string) error {
	if e.onEncode != nil {
		e.onEncode()
	}
	e.calls = append(e.calls, "audio")
	e.seconds = append(e.seconds, durationSeconds)
	if e.audioErr != nil {
		return e.audioErr
	}
	return os.WriteFile(destination, append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 400)...), 0o644)
}

func (e *fakeEncoder) EncodeColorVideo(ctx context.Context, durationSeconds int, destination string) error {
	if e.onEncode != nil {
		e.onEncode()
	}
	e.calls = append(e.calls, "video")
	e.seconds = append(e.seconds, durationSeconds)
	if e.videoErr != nil {
		return e.videoErr
	}
	return os.WriteFile(destination, mp4Bytes(600), 0o644)
}
