package models

import "time"

// PushSubscriptionKeys are the client encryption keys of a browser
// push registration.
type PushSubscriptionKeys struct {
	P256dh string `bson:"p256dh" json:"p256dh"`
	Auth   string `bson:"auth" json:"auth"`
}

// PushSubscriptionRecord is one browser push endpoint registered by a
// user. Endpoint is unique: re-registering the same endpoint for a
// different user overwrites UserID.
type PushSubscriptionRecord struct {
	UserID    string               `bson:"user_id" json:"user_id"`
	Endpoint  string               `bson:"endpoint" json:"endpoint"`
	Keys      PushSubscriptionKeys `bson:"keys" json:"keys"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}
