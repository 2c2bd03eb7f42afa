package models

import "time"

// RateLimitRecord tracks attempts of one action by one identifier
// within a sliding window. The record expires at ResetAt unless the
// window re-arms; LockedUntil is set once attempts exceed the action
// policy.
type RateLimitRecord struct {
	Identifier  string     `json:"identifier"`
	Action      string     `json:"action"`
	Attempts    int        `json:"attempts"`
	ResetAt     time.Time  `json:"reset_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}
