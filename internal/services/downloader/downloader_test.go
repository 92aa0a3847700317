package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/database"
	"github.com/denisAlshanov/mediagrab/internal/models"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
	"github.com/denisAlshanov/mediagrab/internal/services/storage"
	"github.com/denisAlshanov/mediagrab/internal/services/tempstore"
	"github.com/denisAlshanov/mediagrab/internal/services/youtube"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

const testLink = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type fakeResolver struct {
	mu       sync.Mutex
	catalog  *acquisition.Catalog
	contents map[string][]byte
	block    bool
}

func (r *fakeResolver) ListFormats(ctx context.Context, sourceID string) (*acquisition.Catalog, error) {
	return r.catalog, nil
}

func (r *fakeResolver) Fetch(ctx context.Context, sourceID string, spec acquisition.CandidateSpec, destHint string) (string, error) {
	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	r.mu.Lock()
	content, ok := r.contents[spec.String()]
	r.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("format %s unavailable", spec)
	}
	path := destHint + ".mp4"
	return path, os.WriteFile(path, content, 0o644)
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []*models.Acquisition
	err      error
}

func (n *fakeNotifier) Connect(ctx context.Context) error { return nil }
func (n *fakeNotifier) Close() error                      { return nil }

func (n *fakeNotifier) NotifyAcquisition(ctx context.Context, acq *models.Acquisition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, acq)
	return n.err
}

type fixture struct {
	downloader *Downloader
	resolver   *fakeResolver
	notifier   *fakeNotifier
	db         *database.MemoryDB
	storage    *storage.LocalStorage
}

func mp4(size int) []byte {
	b := make([]byte, size)
	copy(b, "\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")
	return b
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	temp, err := tempstore.NewStore(t.TempDir())
	require.NoError(t, err)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	resolver := &fakeResolver{
		catalog: &acquisition.Catalog{Title: "Never Gonna Give You Up", Formats: []acquisition.FormatDescriptor{
			{ID: "18", Container: "mp4", ResolutionLabel: "360p", VideoCodec: "avc1", AudioCodec: "mp4a", HasDirectURL: true},
		}},
		contents: map[string][]byte{"18": mp4(4096)},
	}
	cfg := &config.AcquisitionConfig{
		QualityCeilings: []int{720, 360},
		MaxConcurrent:   2,
	}
	pipeline := acquisition.NewPipeline(resolver, temp, store, nil, acquisition.Options{
		QualityCeilings: cfg.QualityCeilings,
		AttemptTimeout:  time.Second,
	})

	db := database.NewMemoryDB()
	notifier := &fakeNotifier{}

	return &fixture{
		downloader: NewDownloader(db, store, youtube.NewClient(0), pipeline, notifier, cfg),
		resolver:   resolver,
		notifier:   notifier,
		db:         db,
		storage:    store,
	}
}

func appErrorCode(t *testing.T, err error) utils.ErrorCode {
	t.Helper()
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestGrabSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.downloader.Grab(ctx, testLink, "video")
	require.NoError(t, err)

	assert.Equal(t, acquisition.StatusSuccess, record.Status)
	assert.Equal(t, "dQw4w9WgXcQ", record.SourceID)
	assert.Equal(t, "18", record.FormatUsed)
	assert.Equal(t, "local", record.StorageBackend)
	assert.Equal(t, "Never Gonna Give You Up", record.Title)
	assert.Empty(t, f.notifier.notified)

	stored, err := f.downloader.Get(ctx, record.ID.String())
	require.NoError(t, err)
	assert.Equal(t, record.ID, stored.ID)

	reader, _, err := f.downloader.Open(ctx, record.ID.String())
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Len(t, data, 4096)
}

func TestGrabSyntheticFallbackNotifies(t *testing.T) {
	f := newFixture(t)
	f.resolver.contents = map[string][]byte{}

	record, err := f.downloader.Grab(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "audio")
	require.NoError(t, err)

	assert.Equal(t, acquisition.StatusSyntheticFallback, record.Status)
	assert.True(t, record.IsSynthetic)
	assert.Empty(t, record.FormatUsed)
	assert.Equal(t, acquisition.ModeAudioOnly, record.Mode)
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, record.ID, f.notifier.notified[0].ID)
}

func TestGrabNotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.resolver.contents = map[string][]byte{}
	f.notifier.err = errors.New("telegram down")

	record, err := f.downloader.Grab(context.Background(), testLink, "video")
	require.NoError(t, err)
	assert.Equal(t, acquisition.StatusSyntheticFallback, record.Status)
}

func TestGrabRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.downloader.Grab(context.Background(), "https://vimeo.com/1", "video")
	assert.Equal(t, utils.ErrorCodeInvalidLinkFormat, appErrorCode(t, err))

	_, err = f.downloader.Grab(context.Background(), testLink, "podcast")
	assert.Equal(t, utils.ErrorCodeValidationError, appErrorCode(t, err))

	_, total, err := f.db.ListAcquisitions(context.Background(), models.PaginationOptions{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGrabCancelledIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.resolver.block = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	record, err := f.downloader.Grab(ctx, testLink, "video")
	require.NoError(t, err)
	assert.Equal(t, acquisition.StatusCancelled, record.Status)

	stored, err := f.db.GetAcquisition(context.Background(), record.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, acquisition.StatusCancelled, stored.Status)
}

func TestGrabWaitsForSlot(t *testing.T) {
	f := newFixture(t)
	// Occupy every slot.
	for i := 0; i < cap(f.downloader.semaphore); i++ {
		f.downloader.semaphore <- struct{}{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	record, err := f.downloader.Grab(ctx, testLink, "video")
	require.NoError(t, err)
	assert.Equal(t, acquisition.StatusCancelled, record.Status)
	assert.Empty(t, record.Attempts)
}

func TestFormats(t *testing.T) {
	f := newFixture(t)

	resp, err := f.downloader.Formats(context.Background(), testLink, "video")
	require.NoError(t, err)

	assert.Equal(t, "dQw4w9WgXcQ", resp.SourceID)
	require.Len(t, resp.Catalog, 1)
	assert.Equal(t, acquisition.TierAudioVideo, resp.Catalog[0].Tier)
	assert.Equal(t, []string{
		"18",
		"best[height<=720][ext=mp4]",
		"best[height<=360][ext=mp4]",
		"best",
		"worst",
	}, resp.Plan)
}

func TestListAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.downloader.Grab(ctx, testLink, "video")
	require.NoError(t, err)
	second, err := f.downloader.Grab(ctx, testLink, "video")
	require.NoError(t, err)

	list, err := f.downloader.List(ctx, models.PaginationOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.Limit)
	require.Len(t, list.Items, 2)
	assert.Equal(t, second.ID, list.Items[0].ID)

	require.NoError(t, f.downloader.Delete(ctx, first.ID.String()))
	exists, err := f.storage.Exists(ctx, first.ArtifactRef)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.downloader.Get(ctx, first.ID.String())
	assert.Equal(t, utils.ErrorCodeAcquisitionNotFound, appErrorCode(t, err))

	err = f.downloader.Delete(ctx, first.ID.String())
	assert.Equal(t, utils.ErrorCodeAcquisitionNotFound, appErrorCode(t, err))
}

func TestGetInvalidID(t *testing.T) {
	f := newFixture(t)

	_, err := f.downloader.Get(context.Background(), "not-a-uuid")
	assert.Equal(t, utils.ErrorCodeAcquisitionNotFound, appErrorCode(t, err))
}
