package users

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"stock_alerts_backend/models"
)

// Profile is the slice of a user record the alert pipeline needs: the
// billing plan and the optional SMS destination.
type Profile struct {
	UserID string      `bson:"_id"`
	Plan   models.Plan `bson:"plan"`
	Phone  string      `bson:"phone,omitempty"`
}

// Store reads user profiles from the user_profiles collection. It
// backs both the plan resolver and the SMS contact lookup.
type Store struct {
	col *mongo.Collection
}

// NewStore wraps the user_profiles collection of db.
func NewStore(db *mongo.Database) *Store {
	return &Store{col: db.Collection("user_profiles")}
}

// Lookup returns the user's billing plan. Unknown users default to the
// free plan rather than erroring, so a half-provisioned account still
// gets a deterministic entitlement answer.
func (s *Store) Lookup(ctx context.Context, userID string) (models.Plan, error) {
	var p Profile
	err := s.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("profile lookup for user %s failed: %w", userID, err)
	}
	if !p.Plan.Valid() {
		return models.PlanFree, nil
	}
	return p.Plan, nil
}

// PhoneNumber returns the user's SMS destination, or empty when none
// is configured.
func (s *Store) PhoneNumber(ctx context.Context, userID string) (string, error) {
	var p Profile
	err := s.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("profile lookup for user %s failed: %w", userID, err)
	}
	return p.Phone, nil
}
