package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"stock_alerts_backend/models"
)

// Policy configures the sliding window for one action.
type Policy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultPolicies is the per-action policy set.
var DefaultPolicies = map[string]Policy{
	"otp_generate": {MaxAttempts: 3, Window: 60 * time.Minute, LockDuration: 15 * time.Minute},
	"otp_verify":   {MaxAttempts: 5, Window: 10 * time.Minute, LockDuration: 5 * time.Minute},
	"otp_resend":   {MaxAttempts: 2, Window: 60 * time.Minute, LockDuration: 10 * time.Minute},
	"chat_message": {MaxAttempts: 30, Window: 1 * time.Minute, LockDuration: 5 * time.Minute},
	"alert_create": {MaxAttempts: 20, Window: 1 * time.Minute, LockDuration: 5 * time.Minute},
}

// Result is the outcome of one rate-limit check, carrying the
// machine-readable retry times the caller presents to the user.
type Result struct {
	Limited     bool      `json:"limited"`
	Remaining   int       `json:"remaining"`
	ResetAt     time.Time `json:"reset_at"`
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

type recordKey struct {
	identifier string
	action     string
}

// RateLimiter is a sliding-window guard with lockout, keyed by
// (identifier, action). Records auto-expire when their window passes
// without a re-arm.
type RateLimiter struct {
	mu       sync.Mutex
	records  map[recordKey]*models.RateLimitRecord
	policies map[string]Policy
	now      func() time.Time
}

// NewRateLimiter creates a limiter over the given policy set; nil
// uses DefaultPolicies.
func NewRateLimiter(policies map[string]Policy) *RateLimiter {
	if policies == nil {
		policies = DefaultPolicies
	}
	return &RateLimiter{
		records:  make(map[recordKey]*models.RateLimitRecord),
		policies: policies,
		now:      time.Now,
	}
}

// Check records one attempt of action by identifier and reports
// whether it is limited. While a lock is in the future every check
// reports limited regardless of attempts; once the window has passed
// the record resets to a single fresh attempt, clearing any expired
// lock. Actions without a policy are never limited.
func (rl *RateLimiter) Check(identifier, action string) Result {
	policy, ok := rl.policies[action]
	if !ok {
		return Result{Remaining: 1}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := recordKey{identifier: identifier, action: action}
	rec := rl.records[key]

	if rec != nil && rec.LockedUntil != nil {
		if now.Before(*rec.LockedUntil) {
			return Result{Limited: true, ResetAt: rec.ResetAt, LockedUntil: *rec.LockedUntil}
		}
		rec = nil // expired lock resets with the window
	}

	if rec == nil || !now.Before(rec.ResetAt) {
		rec = &models.RateLimitRecord{
			Identifier: identifier,
			Action:     action,
			Attempts:   1,
			ResetAt:    now.Add(policy.Window),
		}
		rl.records[key] = rec
		return Result{Remaining: policy.MaxAttempts - 1, ResetAt: rec.ResetAt}
	}

	rec.Attempts++
	if rec.Attempts > policy.MaxAttempts {
		locked := now.Add(policy.LockDuration)
		rec.LockedUntil = &locked
		return Result{Limited: true, ResetAt: rec.ResetAt, LockedUntil: locked}
	}

	return Result{
		Remaining: policy.MaxAttempts - rec.Attempts,
		ResetAt:   rec.ResetAt,
	}
}

// Cleanup drops records whose window and lock have both expired. The
// scheduler runs it periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, rec := range rl.records {
		if rec.LockedUntil != nil && now.Before(*rec.LockedUntil) {
			continue
		}
		if !now.Before(rec.ResetAt) {
			delete(rl.records, key)
		}
	}
}

// SetClock overrides the limiter's time source for tests.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}

// RateLimitMiddleware guards one action with the limiter, keying on
// the authenticated user when present and the client IP otherwise.
// Limited requests receive 429 with the reset and lock times.
func RateLimitMiddleware(rl *RateLimiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := c.GetString("user_id")
		if identifier == "" {
			identifier = c.ClientIP()
		}

		result := rl.Check(identifier, action)
		if result.Limited {
			resp := gin.H{
				"error":    "rate_limited",
				"reset_at": result.ResetAt,
			}
			if !result.LockedUntil.IsZero() {
				resp["locked_until"] = result.LockedUntil
			}
			c.JSON(http.StatusTooManyRequests, resp)
			c.Abort()
			return
		}
		c.Next()
	}
}
