package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/models"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// Build connection string
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgdb := &PostgresDB{pool: pool}

	if err := pgdb.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pgdb, nil
}

func (p *PostgresDB) createTables(ctx context.Context) error {
	createAcquisitionsTable := `
		CREATE TABLE IF NOT EXISTS acquisitions (
			id UUID PRIMARY KEY,
			link VARCHAR(500) NOT NULL,
			source_id VARCHAR(255) NOT NULL,
			mode VARCHAR(20) NOT NULL,
			status VARCHAR(40) NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			format_used VARCHAR(255) NOT NULL DEFAULT '',
			is_synthetic BOOLEAN NOT NULL DEFAULT FALSE,
			artifact_ref TEXT NOT NULL DEFAULT '',
			storage_backend VARCHAR(20) NOT NULL DEFAULT '',
			mime_type VARCHAR(255) NOT NULL DEFAULT '',
			size_bytes BIGINT NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			attempts JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_acquisitions_source_id ON acquisitions(source_id);
		CREATE INDEX IF NOT EXISTS idx_acquisitions_created_at ON acquisitions(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_acquisitions_status ON acquisitions(status);
	`

	if _, err := p.pool.Exec(ctx, createAcquisitionsTable); err != nil {
		return fmt.Errorf("failed to create acquisitions table: %w", err)
	}
	return nil
}

const acquisitionColumns = `id, link, source_id, mode, status, title, format_used, is_synthetic,
	artifact_ref, storage_backend, mime_type, size_bytes, message, attempts, created_at, completed_at`

func (p *PostgresDB) SaveAcquisition(ctx context.Context, acq *models.Acquisition) error {
	attemptsJSON, err := json.Marshal(acq.Attempts)
	if err != nil {
		return fmt.Errorf("failed to marshal attempts: %w", err)
	}

	query := `
		INSERT INTO acquisitions (` + acquisitionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, title = EXCLUDED.title, format_used = EXCLUDED.format_used,
			is_synthetic = EXCLUDED.is_synthetic, artifact_ref = EXCLUDED.artifact_ref,
			storage_backend = EXCLUDED.storage_backend, mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes, message = EXCLUDED.message,
			attempts = EXCLUDED.attempts, completed_at = EXCLUDED.completed_at`

	_, err = p.pool.Exec(ctx, query,
		acq.ID, acq.Link, acq.SourceID, string(acq.Mode), string(acq.Status), acq.Title, acq.FormatUsed,
		acq.IsSynthetic, acq.ArtifactRef, acq.StorageBackend, acq.MimeType, acq.SizeBytes, acq.Message,
		attemptsJSON, acq.CreatedAt, acq.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save acquisition: %w", err)
	}
	return nil
}

func (p *PostgresDB) GetAcquisition(ctx context.Context, id uuid.UUID) (*models.Acquisition, error) {
	query := `SELECT ` + acquisitionColumns + ` FROM acquisitions WHERE id = $1`

	acq, err := scanAcquisition(p.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisition: %w", err)
	}
	return acq, nil
}

func (p *PostgresDB) ListAcquisitions(ctx context.Context, opts models.PaginationOptions) ([]models.Acquisition, int, error) {
	opts = opts.Normalize()

	var total int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM acquisitions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count acquisitions: %w", err)
	}

	query := `
		SELECT ` + acquisitionColumns + `
		FROM acquisitions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := p.pool.Query(ctx, query, opts.Limit, opts.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list acquisitions: %w", err)
	}
	defer rows.Close()

	acquisitions := []models.Acquisition{}
	for rows.Next() {
		acq, err := scanAcquisition(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan acquisition: %w", err)
		}
		acquisitions = append(acquisitions, *acq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list acquisitions: %w", err)
	}

	return acquisitions, total, nil
}

func (p *PostgresDB) DeleteAcquisition(ctx context.Context, id uuid.UUID) error {
	result, err := p.pool.Exec(ctx, `DELETE FROM acquisitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete acquisition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Health check
func (p *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

func (p *PostgresDB) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

func scanAcquisition(row pgx.Row) (*models.Acquisition, error) {
	var (
		acq          models.Acquisition
		mode, status string
		attemptsJSON []byte
	)

	err := row.Scan(
		&acq.ID, &acq.Link, &acq.SourceID, &mode, &status, &acq.Title, &acq.FormatUsed, &acq.IsSynthetic,
		&acq.ArtifactRef, &acq.StorageBackend, &acq.MimeType, &acq.SizeBytes, &acq.Message, &attemptsJSON,
		&acq.CreatedAt, &acq.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	acq.Mode = acquisition.Mode(mode)
	acq.Status = acquisition.Status(status)
	if err := json.Unmarshal(attemptsJSON, &acq.Attempts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attempts: %w", err)
	}
	return &acq, nil
}
