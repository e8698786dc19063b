package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifarm-balance-ledger/internal/domain/history"
)

const (
	// HistoryCollectionName is the name of the history mirror collection in MongoDB
	HistoryCollectionName = "ledger_history"
)

// HistoryRepository implements the history.Repository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) history.Repository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert writes the document keyed by ledger entry ID.
// The outbox poller may replay a message, so the write must be idempotent.
func (r *HistoryRepository) Upsert(ctx context.Context, doc *history.Document) error {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"ledger_entry_id": doc.LedgerEntryID}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, doc, opts)
	if err != nil {
		r.logger.Error("Failed to upsert history document",
			"ledger_entry_id", doc.LedgerEntryID,
			"error", err)
		return fmt.Errorf("failed to upsert history document: %w", err)
	}

	return nil
}

// GetByLedgerEntryID retrieves a single mirrored entry.
// Returns ErrDocumentNotFound if the entry has not been mirrored yet.
func (r *HistoryRepository) GetByLedgerEntryID(ctx context.Context, ledgerEntryID int64) (*history.Document, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"ledger_entry_id": ledgerEntryID}
	var doc history.Document
	err := collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, history.ErrDocumentNotFound{LedgerEntryID: ledgerEntryID}
		}
		r.logger.Error("Failed to get history document",
			"ledger_entry_id", ledgerEntryID,
			"error", err)
		return nil, fmt.Errorf("failed to get history document: %w", err)
	}

	return &doc, nil
}

// GetByUserID retrieves paginated history for a user.
// Results are sorted by creation time in descending order (newest first).
func (r *HistoryRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*history.Document, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"user_id": userID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history documents",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to get history documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*history.Document
	if err := cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode history documents",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to decode history documents: %w", err)
	}

	return docs, nil
}

// CountByUserID counts the total number of mirrored entries for a user
func (r *HistoryRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"user_id": userID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count history documents",
			"user_id", userID,
			"error", err)
		return 0, fmt.Errorf("failed to count history documents: %w", err)
	}

	return count, nil
}
