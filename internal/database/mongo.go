package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/models"
	"github.com/denisAlshanov/mediagrab/internal/services/acquisition"
)

type MongoDB struct {
	client       *mongo.Client
	database     *mongo.Database
	acquisitions *mongo.Collection
}

// acquisitionDocument is the stored shape of models.Acquisition.
type acquisitionDocument struct {
	ID             string                `bson:"_id"`
	Link           string                `bson:"link"`
	SourceID       string                `bson:"source_id"`
	Mode           string                `bson:"mode"`
	Status         string                `bson:"status"`
	Title          string                `bson:"title"`
	FormatUsed     string                `bson:"format_used"`
	IsSynthetic    bool                  `bson:"is_synthetic"`
	ArtifactRef    string                `bson:"artifact_ref"`
	StorageBackend string                `bson:"storage_backend"`
	MimeType       string                `bson:"mime_type"`
	SizeBytes      int64                 `bson:"size_bytes"`
	Message        string                `bson:"message"`
	Attempts       []acquisition.Attempt `bson:"attempts"`
	CreatedAt      time.Time             `bson:"created_at"`
	CompletedAt    time.Time             `bson:"completed_at"`
}

func NewMongoDB(cfg *config.MongoDBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	mongodb := &MongoDB{
		client:       client,
		database:     db,
		acquisitions: db.Collection("acquisitions"),
	}

	if err := mongodb.createIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongodb, nil
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "source_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}

	if _, err := m.acquisitions.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create acquisitions indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) SaveAcquisition(ctx context.Context, acq *models.Acquisition) error {
	doc := toDocument(acq)
	_, err := m.acquisitions.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save acquisition: %w", err)
	}
	return nil
}

func (m *MongoDB) GetAcquisition(ctx context.Context, id uuid.UUID) (*models.Acquisition, error) {
	var doc acquisitionDocument
	err := m.acquisitions.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisition: %w", err)
	}
	return fromDocument(&doc)
}

func (m *MongoDB) ListAcquisitions(ctx context.Context, opts models.PaginationOptions) ([]models.Acquisition, int, error) {
	opts = opts.Normalize()

	total, err := m.acquisitions.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count acquisitions: %w", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(opts.Offset())).
		SetLimit(int64(opts.Limit))

	cursor, err := m.acquisitions.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list acquisitions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []acquisitionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode acquisitions: %w", err)
	}

	acquisitions := make([]models.Acquisition, 0, len(docs))
	for i := range docs {
		acq, err := fromDocument(&docs[i])
		if err != nil {
			return nil, 0, err
		}
		acquisitions = append(acquisitions, *acq)
	}
	return acquisitions, int(total), nil
}

func (m *MongoDB) DeleteAcquisition(ctx context.Context, id uuid.UUID) error {
	result, err := m.acquisitions.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete acquisition: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func toDocument(acq *models.Acquisition) acquisitionDocument {
	return acquisitionDocument{
		ID:             acq.ID.String(),
		Link:           acq.Link,
		SourceID:       acq.SourceID,
		Mode:           string(acq.Mode),
		Status:         string(acq.Status),
		Title:          acq.Title,
		FormatUsed:     acq.FormatUsed,
		IsSynthetic:    acq.IsSynthetic,
		ArtifactRef:    acq.ArtifactRef,
		StorageBackend: acq.StorageBackend,
		MimeType:       acq.MimeType,
		SizeBytes:      acq.SizeBytes,
		Message:        acq.Message,
		Attempts:       acq.Attempts,
		CreatedAt:      acq.CreatedAt,
		CompletedAt:    acq.CompletedAt,
	}
}

func fromDocument(doc *acquisitionDocument) (*models.Acquisition, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid acquisition id %q: %w", doc.ID, err)
	}
	attempts := doc.Attempts
	if attempts == nil {
		attempts = []acquisition.Attempt{}
	}
	return &models.Acquisition{
		ID:             id,
		Link:           doc.Link,
		SourceID:       doc.SourceID,
		Mode:           acquisition.Mode(doc.Mode),
		Status:         acquisition.Status(doc.Status),
		Title:          doc.Title,
		FormatUsed:     doc.FormatUsed,
		IsSynthetic:    doc.IsSynthetic,
		ArtifactRef:    doc.ArtifactRef,
		StorageBackend: doc.StorageBackend,
		MimeType:       doc.MimeType,
		SizeBytes:      doc.SizeBytes,
		Message:        doc.Message,
		Attempts:       attempts,
		CreatedAt:      doc.CreatedAt.UTC(),
		CompletedAt:    doc.CompletedAt.UTC(),
	}, nil
}
