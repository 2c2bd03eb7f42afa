package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock_alerts_backend/models"
)

// MemoryRepository is an in-memory Repository with the same claim
// linearizability as the production store. It backs tests and local
// development without a database.
type MemoryRepository struct {
	mu     sync.Mutex
	alerts map[string]*models.PriceAlert
}

// NewMemoryRepository creates an empty in-memory alert store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{alerts: make(map[string]*models.PriceAlert)}
}

func (r *MemoryRepository) Create(_ context.Context, alert *models.PriceAlert) error {
	alert.Normalize()
	if err := alert.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.alerts {
		if existing.UserID == alert.UserID &&
			existing.Symbol == alert.Symbol &&
			existing.AlertType == alert.AlertType &&
			existing.AlertSubType == alert.AlertSubType &&
			existing.AlertName == alert.AlertName {
			return ErrDuplicateAlert
		}
	}

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	now := time.Now()
	alert.CreatedAt = now
	alert.UpdatedAt = now
	alert.IsActive = true
	alert.TriggeredAt = nil

	stored := *alert
	r.alerts[alert.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindActiveBySymbol(_ context.Context, symbol string) ([]models.PriceAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PriceAlert
	for _, a := range r.alerts {
		if a.Symbol == symbol && a.IsActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string) ([]models.PriceAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PriceAlert
	for _, a := range r.alerts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Claim(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || !a.IsActive {
		return false, nil
	}
	a.IsActive = false
	triggered := at
	a.TriggeredAt = &triggered
	a.UpdatedAt = at
	return true, nil
}

func (r *MemoryRepository) Deactivate(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || a.UserID != userID {
		return ErrAlertNotFound
	}
	a.IsActive = false
	a.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) Rearm(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok || a.UserID != userID {
		return ErrAlertNotFound
	}
	a.IsActive = true
	a.TriggeredAt = nil
	a.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) UpdatePercentageBaselines(_ context.Context, closes map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if !a.IsActive || a.AlertSubType != models.SubTypePercentage {
			continue
		}
		if close, ok := closes[a.Symbol]; ok {
			a.PreviousDayClose = close
			a.UpdatedAt = time.Now()
		}
	}
	return nil
}

// Get returns a copy of one stored alert, for test assertions.
func (r *MemoryRepository) Get(id string) (models.PriceAlert, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.alerts[id]; ok {
		return *a, true
	}
	return models.PriceAlert{}, false
}
