package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
)

// Acquisition is the persisted record of one acquisition request.
type Acquisition struct {
	ID             uuid.UUID             `json:"id" db:"id"`
	Link           string                `json:"link" db:"link"`
	SourceID       string                `json:"source_id" db:"source_id"`
	Mode           acquisition.Mode      `json:"mode" db:"mode"`
	Status         acquisition.Status    `json:"status" db:"status"`
	Title          string                `json:"title,omitempty" db:"title"`
	FormatUsed     string                `json:"format_used,omitempty" db:"format_used"`
	IsSynthetic    bool                  `json:"is_synthetic" db:"is_synthetic"`
	ArtifactRef    string                `json:"artifact_ref,omitempty" db:"artifact_ref"`
	StorageBackend string                `json:"storage_backend,omitempty" db:"storage_backend"`
	MimeType       string                `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes      int64                 `json:"size_bytes" db:"size_bytes"`
	Message        string                `json:"message" db:"message"`
	Attempts       []acquisition.Attempt `json:"attempts" db:"attempts"`
	CreatedAt      time.Time             `json:"created_at" db:"created_at"`
	CompletedAt    time.Time             `json:"completed_at" db:"completed_at"`
}

// HasArtifact reports whether a stored file backs the record.
func (a *Acquisition) HasArtifact() bool {
	return a.ArtifactRef != ""
}

// NewAcquisition builds a record from a pipeline result.
func NewAcquisition(id uuid.UUID, link string, req acquisition.AcquisitionRequest, res *acquisition.AcquisitionResult, backend string, startedAt time.Time) *Acquisition {
	record := &Acquisition{
		ID:          id,
		Link:        link,
		SourceID:    req.SourceID,
		Mode:        req.Mode,
		Status:      res.Status,
		Title:       res.Title,
		IsSynthetic: res.IsSynthetic,
		ArtifactRef: res.ArtifactRef,
		MimeType:    res.MimeType,
		SizeBytes:   res.SizeBytes,
		Message:     res.Message,
		Attempts:    res.Attempts,
		CreatedAt:   startedAt.UTC(),
		CompletedAt: time.Now().UTC(),
	}
	if !res.FormatUsed.IsZero() {
		record.FormatUsed = res.FormatUsed.String()
	}
	if res.ArtifactRef != "" {
		record.StorageBackend = backend
	}
	if record.Attempts == nil {
		record.Attempts = []acquisition.Attempt{}
	}
	return record
}

type PaginationOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Sort  string `json:"sort"`
}

// Normalize applies the default page and limit.
func (p PaginationOptions) Normalize() PaginationOptions {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Page <= 0 {
		p.Page = 1
	}
	return p
}

func (p PaginationOptions) Offset() int {
	return (p.Page - 1) * p.Limit
}

type AcquireRequest struct {
	Link string `json:"link" binding:"required"`
	Mode string `json:"mode"`
}

type FormatsResponse struct {
	Link     string                         `json:"link"`
	SourceID string                         `json:"source_id"`
	Mode     acquisition.Mode               `json:"mode"`
	Title    string                         `json:"title,omitempty"`
	Catalog  []acquisition.ClassifiedFormat `json:"catalog"`
	Plan     []string                       `json:"plan"`
}

type AcquisitionListResponse struct {
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Items []AcquisitionListItem `json:"items"`
}

type AcquisitionListItem struct {
	ID          uuid.UUID          `json:"id"`
	Link        string             `json:"link"`
	Title       string             `json:"title,omitempty"`
	Mode        acquisition.Mode   `json:"mode"`
	Status      acquisition.Status `json:"status"`
	IsSynthetic bool               `json:"is_synthetic"`
	SizeBytes   int64              `json:"size_bytes"`
	CreatedAt   time.Time          `json:"created_at"`
}

func (a *Acquisition) ListItem() AcquisitionListItem {
	return AcquisitionListItem{
		ID:          a.ID,
		Link:        a.Link,
		Title:       a.Title,
		Mode:        a.Mode,
		Status:      a.Status,
		IsSynthetic: a.IsSynthetic,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
	}
}
