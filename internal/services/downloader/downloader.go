package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/database"
	"github.com/denisAlshanov/mediagrab/internal/models"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
	"github.com/denisAlshanov/mediagrab/internal/services/storage"
	"github.com/denisAlshanov/mediagrab/internal/services/telegram"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// LinkParser validates links and extracts the source ID.
type LinkParser interface {
	IsYouTubeURL(url string) bool
	ParseYouTubeURL(url string) (string, error)
}

// Pipeline is the acquisition engine the downloader drives.
type Pipeline interface {
	Acquire(ctx context.Context, req acquisition.AcquisitionRequest) *acquisition.AcquisitionResult
	Preview(ctx context.Context, sourceID string, mode acquisition.Mode, ceilings []int) *acquisition.Preview
}

type Downloader struct {
	db        database.HistoryStore
	storage   storage.StorageInterface
	links     LinkParser
	pipeline  Pipeline
	notifier  telegram.Notifier
	config    *config.AcquisitionConfig
	semaphore chan struct{}
}

// NewDownloader wires the service. notifier may be nil.
func NewDownloader(db database.HistoryStore, storage storage.StorageInterface, links LinkParser, pipeline Pipeline, notifier telegram.Notifier, cfg *config.AcquisitionConfig) *Downloader {
	slots := cfg.MaxConcurrent
	if slots < 1 {
		slots = 1
	}
	return &Downloader{
		db:        db,
		storage:   storage,
		links:     links,
		pipeline:  pipeline,
		notifier:  notifier,
		config:    cfg,
		semaphore: make(chan struct{}, slots),
	}
}

// Grab runs one acquisition for link and records it. The returned record
// describes every terminal status, including hard failure and cancellation.
func (d *Downloader) Grab(ctx context.Context, link, modeName string) (*models.Acquisition, error) {
	mode, videoID, err := d.parseRequest(link, modeName)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	req := acquisition.AcquisitionRequest{
		RequestID:       id.String(),
		SourceID:        videoID,
		Mode:            mode,
		QualityCeilings: d.config.QualityCeilings,
	}
	startedAt := time.Now()

	var result *acquisition.AcquisitionResult
	select {
	case d.semaphore <- struct{}{}:
		result = d.pipeline.Acquire(ctx, req)
		<-d.semaphore
	case <-ctx.Done():
		result = &acquisition.AcquisitionResult{
			Status:  acquisition.StatusCancelled,
			Message: "Acquisition cancelled while waiting for a free slot",
		}
	}

	record := models.NewAcquisition(id, link, req, result, d.storage.Backend(), startedAt)

	utils.LogInfo(ctx, "Acquisition finished", utils.Fields{
		"acquisition_id": record.ID.String(),
		"source_id":      record.SourceID,
		"status":         string(record.Status),
		"format_used":    record.FormatUsed,
		"attempts":       len(record.Attempts),
		"duration_ms":    record.CompletedAt.Sub(startedAt).Milliseconds(),
	})

	// The record is kept even when the caller went away.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	d.notify(persistCtx, record)

	if err := d.db.SaveAcquisition(persistCtx, record); err != nil {
		utils.LogError(ctx, "Failed to save acquisition", err, utils.Fields{"acquisition_id": record.ID.String()})
		return nil, utils.NewDatabaseError(err)
	}

	return record, nil
}

// Formats previews the catalog and plan for link without fetching anything.
func (d *Downloader) Formats(ctx context.Context, link, modeName string) (*models.FormatsResponse, error) {
	mode, videoID, err := d.parseRequest(link, modeName)
	if err != nil {
		return nil, err
	}

	preview := d.pipeline.Preview(ctx, videoID, mode, d.config.QualityCeilings)

	plan := make([]string, 0, len(preview.Plan))
	for _, spec := range preview.Plan {
		plan = append(plan, spec.String())
	}
	catalog := preview.Catalog
	if catalog == nil {
		catalog = []acquisition.ClassifiedFormat{}
	}

	return &models.FormatsResponse{
		Link:     link,
		SourceID: videoID,
		Mode:     mode,
		Title:    preview.Title,
		Catalog:  catalog,
		Plan:     plan,
	}, nil
}

func (d *Downloader) Get(ctx context.Context, id string) (*models.Acquisition, error) {
	acquisitionID, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.NewAcquisitionNotFoundError(id)
	}

	record, err := d.db.GetAcquisition(ctx, acquisitionID)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}
	if record == nil {
		return nil, utils.NewAcquisitionNotFoundError(id)
	}
	return record, nil
}

func (d *Downloader) List(ctx context.Context, opts models.PaginationOptions) (*models.AcquisitionListResponse, error) {
	opts = opts.Normalize()

	records, total, err := d.db.ListAcquisitions(ctx, opts)
	if err != nil {
		return nil, utils.NewDatabaseError(err)
	}

	items := make([]models.AcquisitionListItem, 0, len(records))
	for i := range records {
		items = append(items, records[i].ListItem())
	}

	return &models.AcquisitionListResponse{
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
		Items: items,
	}, nil
}

// Delete removes the stored artifact and then the record.
func (d *Downloader) Delete(ctx context.Context, id string) error {
	record, err := d.Get(ctx, id)
	if err != nil {
		return err
	}

	if record.HasArtifact() {
		if err := d.storage.Delete(ctx, record.ArtifactRef); err != nil {
			utils.LogError(ctx, "Failed to delete artifact", err, utils.Fields{"artifact_ref": record.ArtifactRef})
			return utils.NewStorageError(err)
		}
	}

	if err := d.db.DeleteAcquisition(ctx, record.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return utils.NewAcquisitionNotFoundError(id)
		}
		return utils.NewDatabaseError(err)
	}

	utils.LogInfo(ctx, "Acquisition deleted", utils.Fields{"acquisition_id": id})
	return nil
}

// Open streams the artifact of an acquisition. The caller closes the reader.
func (d *Downloader) Open(ctx context.Context, id string) (io.ReadCloser, *models.Acquisition, error) {
	record, err := d.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !record.HasArtifact() {
		return nil, nil, utils.NewErrorWithDetails(
			utils.ErrorCodeAcquisitionNotFound,
			fmt.Sprintf("Acquisition %s has no stored artifact", id),
			404,
			map[string]interface{}{"status": record.Status},
		)
	}

	reader, err := d.storage.Download(ctx, record.ArtifactRef)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, utils.NewAcquisitionNotFoundError(id)
	}
	if err != nil {
		return nil, nil, utils.NewStorageError(err)
	}
	return reader, record, nil
}

func (d *Downloader) parseRequest(link, modeName string) (acquisition.Mode, string, error) {
	mode, err := acquisition.ParseMode(modeName)
	if err != nil {
		return "", "", utils.NewValidationError("Invalid acquisition mode", map[string]interface{}{
			"mode":     modeName,
			"expected": []string{string(acquisition.ModeVideo), string(acquisition.ModeAudioOnly)},
		})
	}

	if !d.links.IsYouTubeURL(link) {
		return "", "", utils.NewInvalidLinkError(link)
	}
	videoID, err := d.links.ParseYouTubeURL(link)
	if err != nil {
		return "", "", utils.NewInvalidLinkError(link)
	}
	return mode, videoID, nil
}

func (d *Downloader) notify(ctx context.Context, record *models.Acquisition) {
	if d.notifier == nil || !telegram.ShouldNotify(record) {
		return
	}
	if err := d.notifier.NotifyAcquisition(ctx, record); err != nil {
		utils.LogWarn(ctx, "Failed to notify operators", utils.Fields{
			"acquisition_id": record.ID.String(),
			"error":          err.Error(),
		})
	}
}
