package telegram

import (
	"context"

	"github.com/denisAlshanov/mediagrab/internal/models"
)

// Notifier tells operators about acquisitions that did not deliver real media
type Notifier interface {
	Connect(ctx context.Context) error
	NotifyAcquisition(ctx context.Context, acq *models.Acquisition) error
	Close() error
}
