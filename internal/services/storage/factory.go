package storage

import (
	"fmt"

	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// NewStorage creates the backend selected by STORAGE_BACKEND
func NewStorage(cfg *config.Config) (StorageInterface, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		utils.GetLogger().WithField("endpoint", cfg.S3.EndpointURL).Info("Creating S3 storage")
		s, err := NewS3Storage(&cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, nil
	case config.StorageLocal, "":
		utils.GetLogger().WithField("output_dir", cfg.Storage.OutputDir).Info("Creating local storage")
		s, err := NewLocalStorage(cfg.Storage.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
