package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sportsbook-betting-core/internal/domain/settlement"
	"github.com/sportsbook-betting-core/internal/domain/shared"
)

const (
	// SettlementCollectionName is the name of the settlement records collection in MongoDB
	SettlementCollectionName = "settlement_records"
)

// SettlementRepository implements the settlement.Repository interface for MongoDB
type SettlementRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSettlementRepository creates a new MongoDB settlement repository
func NewSettlementRepository(logger *slog.Logger, db *mongo.Database) settlement.Repository {
	return &SettlementRepository{
		db:     db,
		logger: logger,
	}
}

// Save upserts a settlement record keyed by settlement id. Retry rewrites the
// same record rather than opening a new one.
func (r *SettlementRepository) Save(ctx context.Context, rec *settlement.Record) error {
	collection := r.db.Collection(SettlementCollectionName)

	filter := bson.M{"settlement_id": rec.ID}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, rec, opts)
	if err != nil {
		r.logger.Error("Failed to save settlement record",
			"settlement_id", rec.ID.String(),
			"market_id", rec.MarketID.String(),
			"error", err)
		return fmt.Errorf("failed to save settlement record: %w", err)
	}

	return nil
}

// GetByID retrieves a settlement record by its ID
func (r *SettlementRepository) GetByID(ctx context.Context, id uuid.UUID) (*settlement.Record, error) {
	collection := r.db.Collection(SettlementCollectionName)

	filter := bson.M{"settlement_id": id}
	var rec settlement.Record
	err := collection.FindOne(ctx, filter).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shared.NewError(shared.KindSettlementNotFound, "settlement "+id.String())
		}
		r.logger.Error("Failed to get settlement record",
			"settlement_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get settlement record: %w", err)
	}

	return &rec, nil
}

// GetByMarketID retrieves paginated settlement records for a market, newest
// first.
func (r *SettlementRepository) GetByMarketID(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*settlement.Record, error) {
	collection := r.db.Collection(SettlementCollectionName)

	filter := bson.M{"market_id": marketID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get settlement records",
			"market_id", marketID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get settlement records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*settlement.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode settlement records",
			"market_id", marketID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode settlement records: %w", err)
	}

	return records, nil
}
