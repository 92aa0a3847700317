// Package app wires configuration into the running acquisition service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/database"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
	"github.com/denisAlshanov/mediagrab/internal/services/downloader"
	"github.com/denisAlshanov/mediagrab/internal/services/encoder"
	"github.com/denisAlshanov/mediagrab/internal/services/storage"
	"github.com/denisAlshanov/mediagrab/internal/services/telegram"
	"github.com/denisAlshanov/mediagrab/internal/services/tempstore"
	"github.com/denisAlshanov/mediagrab/internal/services/youtube"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// staleTempAge is how old a leftover temp location must be before startup
// sweeps it.
const staleTempAge = time.Hour

type App struct {
	Config     *config.Config
	DB         database.HistoryStore
	Storage    storage.StorageInterface
	Temp       *tempstore.Store
	YouTube    *youtube.Client
	Pipeline   *acquisition.Pipeline
	Notifier   telegram.Notifier
	Downloader *downloader.Downloader
}

// New builds every collaborator from cfg. The encoder and the notifier are
// optional: when they cannot be set up the service runs without them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	temp, err := tempstore.NewStore(cfg.Acquisition.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize temp store: %w", err)
	}
	if swept, err := temp.Sweep(staleTempAge); err != nil {
		utils.LogWarn(ctx, "Failed to sweep stale temp locations", utils.Fields{"error": err.Error()})
	} else if swept > 0 {
		utils.LogInfo(ctx, "Removed stale temp locations", utils.Fields{"count": swept})
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	db, err := database.NewHistoryStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}

	yt := youtube.NewClient(cfg.Acquisition.YouTubeHTTPTimeout)

	pipeline := acquisition.NewPipeline(yt, temp, store, newEncoder(ctx, cfg.Acquisition.FFmpegPath), acquisition.Options{
		QualityCeilings:     cfg.Acquisition.QualityCeilings,
		ContainerBlacklist:  cfg.Acquisition.ContainerBlacklist,
		MinArtifactSize:     cfg.Acquisition.MinArtifactSize,
		AttemptTimeout:      cfg.Acquisition.AttemptTimeout,
		PlaceholderDuration: cfg.Acquisition.PlaceholderDuration,
	})

	notifier := newNotifier(ctx, &cfg.Notify)

	return &App{
		Config:     cfg,
		DB:         db,
		Storage:    store,
		Temp:       temp,
		YouTube:    yt,
		Pipeline:   pipeline,
		Notifier:   notifier,
		Downloader: downloader.NewDownloader(db, store, yt, pipeline, notifier, &cfg.Acquisition),
	}, nil
}

// Close releases the history store and the notifier.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.DB.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close history store: %w", err))
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close notifier: %w", err))
		}
	}
	return errors.Join(errs...)
}

// newEncoder returns nil, not a typed nil pointer, when ffmpeg is missing.
func newEncoder(ctx context.Context, binary string) acquisition.PlaceholderEncoder {
	enc, err := encoder.NewFFmpegEncoder(binary)
	if err != nil {
		utils.LogWarn(ctx, "Placeholders will be generated without an encoder", utils.Fields{"error": err.Error()})
		return nil
	}
	return enc
}

func newNotifier(ctx context.Context, cfg *config.NotifyConfig) telegram.Notifier {
	if !cfg.Enabled() {
		return nil
	}

	client, err := telegram.NewBotClient(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		utils.LogError(ctx, "Failed to initialize Telegram notifier", err)
		return nil
	}
	if err := client.Connect(ctx); err != nil {
		utils.LogError(ctx, "Failed to connect to Telegram", err)
		return nil
	}
	return client
}
