// Package mongo provides MongoDB implementations of the document-store
// repositories: the wallet transaction audit ledger and the settlement
// records.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sportsbook-betting-core/internal/domain/shared"
	"github.com/sportsbook-betting-core/internal/domain/wallet"
)

const (
	// TransactionCollectionName is the name of the audit ledger collection in MongoDB
	TransactionCollectionName = "wallet_transactions"
)

// TransactionRepository implements the wallet.TransactionRepository interface for MongoDB
type TransactionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewTransactionRepository creates a new MongoDB transaction repository
func NewTransactionRepository(logger *slog.Logger, db *mongo.Database) wallet.TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a transaction record after checking for duplicates.
// Records arrive through the outbox poller, which may redeliver; a record
// already present is reported as DUPLICATE_EVENT.
func (r *TransactionRepository) Create(ctx context.Context, t *wallet.Transaction) error {
	collection := r.db.Collection(TransactionCollectionName)

	existing, err := r.GetByID(ctx, t.ID)
	if err != nil && !shared.IsKind(err, shared.KindTransactionNotFound) {
		r.logger.Error("Failed to check for existing transaction record",
			"transaction_id", t.ID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing transaction record: %w", err)
	}

	if existing != nil {
		return shared.NewError(shared.KindDuplicateEvent, "transaction "+t.ID.String()+" already recorded")
	}

	_, err = collection.InsertOne(ctx, t)
	if err != nil {
		r.logger.Error("Failed to create transaction record",
			"transaction_id", t.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create transaction record: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction record by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"transaction_id": id}
	var t wallet.Transaction
	err := collection.FindOne(ctx, filter).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NewError(shared.KindTransactionNotFound, "transaction "+id.String())
		}
		r.logger.Error("Failed to get transaction record",
			"transaction_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction record: %w", err)
	}

	return &t, nil
}

// GetByUserID retrieves paginated transaction records for a user.
// Results are sorted by creation time in descending order (newest first).
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*wallet.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"user_id": userID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get transaction records",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction records: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*wallet.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		r.logger.Error("Failed to decode transaction records",
			"user_id", userID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode transaction records: %w", err)
	}

	return transactions, nil
}

// CountByUserID counts the total number of transaction records for a user
func (r *TransactionRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"user_id": userID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count transaction records",
			"user_id", userID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count transaction records: %w", err)
	}

	return count, nil
}

// GetByTimeRange retrieves paginated transaction records within the specified
// time window, newest first.
func (r *TransactionRepository) GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*wallet.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{
		"created_at": bson.M{
			"$gte": startTime,
			"$lte": endTime,
		},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get transaction records by time range",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to get transaction records by time range: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*wallet.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		r.logger.Error("Failed to decode transaction records",
			"start_time", startTime,
			"end_time", endTime,
			"error", err)
		return nil, fmt.Errorf("failed to decode transaction records: %w", err)
	}

	return transactions, nil
}
