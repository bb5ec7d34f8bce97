package mongodb

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"complaint_triage/core/port/out"
)

// =============================================================================
// MongoDB Classification Audit Adapter
// =============================================================================

const (
	collectionAudit = "classification_audit"

	// raw service text above this size is gzipped
	rawCompressionThreshold = 1024

	defaultAuditRetention = 90 * 24 * time.Hour
)

// AuditAdapter implements out.ClassificationArchive using MongoDB.
type AuditAdapter struct {
	collection *mongo.Collection
	retention  time.Duration
}

// NewAuditAdapter creates a new audit adapter. retention <= 0 uses 90 days.
func NewAuditAdapter(db *mongo.Database, retention time.Duration) *AuditAdapter {
	if retention <= 0 {
		retention = defaultAuditRetention
	}
	return &AuditAdapter{
		collection: db.Collection(collectionAudit),
		retention:  retention,
	}
}

var _ out.ClassificationArchive = (*AuditAdapter)(nil)

// EnsureIndexes creates necessary indexes for the collection.
func (a *AuditAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "audit.complaint_id", Value: 1},
				{Key: "audit.recorded_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "audit.source", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type auditDocument struct {
	ID    string                  `bson:"id"`
	Audit out.ClassificationAudit `bson:"audit"`

	// RawCompressed holds the gzipped service text when it was large.
	RawCompressed []byte `bson:"raw_compressed,omitempty"`

	ExpiresAt time.Time `bson:"expires_at"`
}

func (a *AuditAdapter) toDocument(audit *out.ClassificationAudit) (*auditDocument, error) {
	doc := &auditDocument{
		ID:        uuid.NewString(),
		Audit:     *audit,
		ExpiresAt: audit.RecordedAt.Add(a.retention),
	}
	if len(audit.RawResponse) > rawCompressionThreshold {
		compressed, err := compress([]byte(audit.RawResponse))
		if err != nil {
			return nil, err
		}
		doc.RawCompressed = compressed
		doc.Audit.RawResponse = ""
	}
	return doc, nil
}

func (d *auditDocument) toAudit() (*out.ClassificationAudit, error) {
	audit := d.Audit
	if len(d.RawCompressed) > 0 {
		raw, err := decompress(d.RawCompressed)
		if err != nil {
			return nil, err
		}
		audit.RawResponse = string(raw)
	}
	return &audit, nil
}

// =============================================================================
// Operations
// =============================================================================

// Record appends one audit entry.
func (a *AuditAdapter) Record(ctx context.Context, audit *out.ClassificationAudit) error {
	if audit.RecordedAt.IsZero() {
		audit.RecordedAt = time.Now().UTC()
	}
	doc, err := a.toDocument(audit)
	if err != nil {
		return fmt.Errorf("failed to convert audit to document: %w", err)
	}

	filter := bson.M{"id": doc.ID}
	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to save classification audit: %w", err)
	}
	return nil
}

// ListByComplaint returns the newest entries for complaintID first.
func (a *AuditAdapter) ListByComplaint(ctx context.Context, complaintID int64, limit int) ([]*out.ClassificationAudit, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "audit.recorded_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"audit.complaint_id": complaintID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query classification audit: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode classification audit: %w", err)
	}

	audits := make([]*out.ClassificationAudit, 0, len(docs))
	for i := range docs {
		audit, err := docs[i].toAudit()
		if err != nil {
			return nil, fmt.Errorf("failed to restore raw response: %w", err)
		}
		audits = append(audits, audit)
	}
	return audits, nil
}

// =============================================================================
// Compression
// =============================================================================

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
