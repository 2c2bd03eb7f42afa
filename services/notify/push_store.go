package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stock_alerts_backend/models"
)

// PushStore is the registry of browser push endpoints.
type PushStore interface {
	// Upsert registers an endpoint. Re-targeting an existing endpoint
	// to a new user overwrites its UserID.
	Upsert(ctx context.Context, record models.PushSubscriptionRecord) error
	FindByUser(ctx context.Context, userID string) ([]models.PushSubscriptionRecord, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

const pushCollection = "push_subscriptions"

// MongoPushStore is the production push registry.
type MongoPushStore struct {
	coll *mongo.Collection
}

// NewMongoPushStore creates the store over db and ensures the unique
// endpoint index.
func NewMongoPushStore(ctx context.Context, db *mongo.Database) (*MongoPushStore, error) {
	s := &MongoPushStore{coll: db.Collection(pushCollection)}
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "endpoint", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_endpoint"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_user"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create push subscription indexes: %w", err)
	}
	return s, nil
}

func (s *MongoPushStore) Upsert(ctx context.Context, record models.PushSubscriptionRecord) error {
	now := time.Now()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"endpoint": record.Endpoint},
		bson.M{
			"$set": bson.M{
				"user_id":    record.UserID,
				"keys":       record.Keys,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

func (s *MongoPushStore) FindByUser(ctx context.Context, userID string) ([]models.PushSubscriptionRecord, error) {
	cur, err := s.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions for user %s: %w", userID, err)
	}
	defer cur.Close(ctx)

	var records []models.PushSubscriptionRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode push subscriptions for user %s: %w", userID, err)
	}
	return records, nil
}

func (s *MongoPushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"endpoint": endpoint}); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

// MemoryPushStore is an in-memory push registry for tests.
type MemoryPushStore struct {
	mu      sync.Mutex
	records map[string]models.PushSubscriptionRecord // by endpoint
}

// NewMemoryPushStore creates an empty in-memory push registry.
func NewMemoryPushStore() *MemoryPushStore {
	return &MemoryPushStore{records: make(map[string]models.PushSubscriptionRecord)}
}

func (s *MemoryPushStore) Upsert(_ context.Context, record models.PushSubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[record.Endpoint]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.records[record.Endpoint] = record
	return nil
}

func (s *MemoryPushStore) FindByUser(_ context.Context, userID string) ([]models.PushSubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PushSubscriptionRecord
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryPushStore) DeleteByEndpoint(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, endpoint)
	return nil
}
