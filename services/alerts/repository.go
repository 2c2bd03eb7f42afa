package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// Repository errors.
var (
	ErrDuplicateAlert = errors.New("alert already exists for user, symbol, type and name")
	ErrAlertNotFound  = errors.New("alert not found")
)

// Repository is the durable store of alert rules and their lifecycle
// state. Claim is the linearizable conditional update that prevents a
// single alert from triggering twice between explicit re-arms.
type Repository interface {
	Create(ctx context.Context, alert *models.PriceAlert) error
	FindActiveBySymbol(ctx context.Context, symbol string) ([]models.PriceAlert, error)
	ListByUser(ctx context.Context, userID string) ([]models.PriceAlert, error)
	// Claim marks an active alert triggered, returning false without
	// error when the alert was already claimed by a concurrent pass.
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	Deactivate(ctx context.Context, userID, id string) error
	Rearm(ctx context.Context, userID, id string) error
	// UpdatePercentageBaselines rewrites the previous-day-close
	// baseline on active percentage alerts at trading-day rollover.
	UpdatePercentageBaselines(ctx context.Context, closes map[string]float64) error
}

const alertsCollection = "price_alerts"

// MongoRepository is the production alert store, a document collection
// indexed by symbol for the evaluation loop's per-tick fetch.
type MongoRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewMongoRepository creates the store over db and ensures its indexes.
func NewMongoRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*MongoRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &MongoRepository{coll: db.Collection(alertsCollection), logger: logger}

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("idx_symbol_active"),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "symbol", Value: 1},
				{Key: "alert_type", Value: 1},
				{Key: "alert_sub_type", Value: 1},
				{Key: "alert_name", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("idx_alert_identity"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert indexes: %w", err)
	}
	return r, nil
}

func (r *MongoRepository) Create(ctx context.Context, alert *models.PriceAlert) error {
	alert.Normalize()
	if err := alert.Validate(); err != nil {
		return err
	}
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	now := time.Now()
	alert.CreatedAt = now
	alert.UpdatedAt = now
	alert.IsActive = true
	alert.TriggeredAt = nil

	if _, err := r.coll.InsertOne(ctx, alert); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateAlert
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindActiveBySymbol(ctx context.Context, symbol string) ([]models.PriceAlert, error) {
	cur, err := r.coll.Find(ctx, bson.M{"symbol": symbol, "is_active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts for %s: %w", symbol, err)
	}
	defer cur.Close(ctx)

	var alerts []models.PriceAlert
	if err := cur.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts for %s: %w", symbol, err)
	}
	return alerts, nil
}

func (r *MongoRepository) ListByUser(ctx context.Context, userID string) ([]models.PriceAlert, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for user %s: %w", userID, err)
	}
	defer cur.Close(ctx)

	var alerts []models.PriceAlert
	if err := cur.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts for user %s: %w", userID, err)
	}
	return alerts, nil
}

// Claim is a compare-and-set on is_active: the update matches only
// while the alert is still active, so exactly one of any number of
// concurrent claims succeeds.
func (r *MongoRepository) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$set": bson.M{
			"is_active":    false,
			"triggered_at": at,
			"updated_at":   at,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim alert %s: %w", id, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *MongoRepository) Deactivate(ctx context.Context, userID, id string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate alert %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// Rearm reactivates a triggered alert and clears its trigger mark.
func (r *MongoRepository) Rearm(ctx context.Context, userID, id string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{
			"is_active":    true,
			"triggered_at": nil,
			"updated_at":   time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to re-arm alert %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrAlertNotFound
	}
	return nil
}

func (r *MongoRepository) UpdatePercentageBaselines(ctx context.Context, closes map[string]float64) error {
	for symbol, close := range closes {
		_, err := r.coll.UpdateMany(ctx,
			bson.M{
				"symbol":         symbol,
				"alert_sub_type": models.SubTypePercentage,
				"is_active":      true,
			},
			bson.M{"$set": bson.M{
				"previous_day_close": close,
				"updated_at":         time.Now(),
			}},
		)
		if err != nil {
			return fmt.Errorf("failed to update baselines for %s: %w", symbol, err)
		}
	}
	return nil
}
