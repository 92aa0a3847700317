package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denisAlshanov/mediagrab/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Acquisition: config.AcquisitionConfig{
			TempDir:       filepath.Join(t.TempDir(), "tmp"),
			FFmpegPath:    "definitely-not-ffmpeg",
			MaxConcurrent: 1,
		},
		Storage:  config.StorageConfig{Backend: config.StorageLocal, OutputDir: t.TempDir()},
		Database: config.DatabaseConfig{Driver: config.DatabaseMemory},
	}
}

func TestNewWiresLocalStack(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "local", app.Storage.Backend())
	assert.Nil(t, app.Notifier)
	assert.NotNil(t, app.Downloader)
	require.NoError(t, app.DB.Ping(ctx))
	require.NoError(t, app.Close(ctx))
}

func TestNewSweepsStaleTempLocations(t *testing.T) {
	cfg := testConfig(t)
	stale := filepath.Join(cfg.Acquisition.TempDir, "leftover")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	old := time.Now().Add(-2 * staleTempAge)
	require.NoError(t, os.Chtimes(stale, old, old))

	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close(context.Background())

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "ftp"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewEncoderMissingBinaryIsNil(t *testing.T) {
	assert.Nil(t, newEncoder(context.Background(), "definitely-not-ffmpeg"))
}
