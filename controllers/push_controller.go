package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_alerts_backend/models"
	"stock_alerts_backend/services/notify"
)

// PushController manages web push subscription registrations.
type PushController struct {
	store    notify.PushStore
	vapidKey string
	logger   *zap.Logger
}

// NewPushController creates a new push subscription controller.
func NewPushController(store notify.PushStore, vapidPublicKey string, logger *zap.Logger) *PushController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushController{store: store, vapidKey: vapidPublicKey, logger: logger}
}

// GetVAPIDKey returns the public key browsers need to subscribe
// GET /api/push/key
func (pc *PushController) GetVAPIDKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": pc.vapidKey})
}

// Subscribe stores or refreshes a browser push subscription
// POST /api/push/subscribe
func (pc *PushController) Subscribe(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription payload"})
		return
	}

	rec := models.PushSubscriptionRecord{
		UserID:   userID,
		Endpoint: req.Endpoint,
		Keys: models.PushSubscriptionKeys{
			P256dh: req.Keys.P256dh,
			Auth:   req.Keys.Auth,
		},
		UpdatedAt: time.Now(),
	}
	if err := pc.store.Upsert(c.Request.Context(), rec); err != nil {
		pc.logger.Error("push subscribe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed"})
}

// Unsubscribe removes a push subscription by endpoint
// POST /api/push/unsubscribe
func (pc *PushController) Unsubscribe(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := pc.store.DeleteByEndpoint(c.Request.Context(), req.Endpoint); err != nil {
		pc.logger.Error("push unsubscribe failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed"})
}
