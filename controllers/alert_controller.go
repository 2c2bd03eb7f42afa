package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_alerts_backend/models"
	"stock_alerts_backend/services/alerts"
)

// AlertController handles price alert CRUD requests.
type AlertController struct {
	repo   alerts.Repository
	logger *zap.Logger
}

// NewAlertController creates a new alert controller.
func NewAlertController(repo alerts.Repository, logger *zap.Logger) *AlertController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertController{repo: repo, logger: logger}
}

// CreateAlert creates a new alert for the authenticated user
// POST /api/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID := c.GetString("user_id")

	var alert models.PriceAlert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert.UserID = userID
	alert.Normalize()

	if err := alert.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ac.repo.Create(c.Request.Context(), &alert); err != nil {
		if errors.Is(err, alerts.ErrDuplicateAlert) {
			c.JSON(http.StatusConflict, gin.H{"error": "An identical alert already exists"})
			return
		}
		ac.logger.Error("alert create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// GetAlerts returns the authenticated user's alerts
// GET /api/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID := c.GetString("user_id")

	list, err := ac.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		ac.logger.Error("alert list failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": list, "count": len(list)})
}

// DeactivateAlert disables an alert without deleting it
// DELETE /api/alerts/:id
func (ac *AlertController) DeactivateAlert(c *gin.Context) {
	userID := c.GetString("user_id")
	id := strings.TrimSpace(c.Param("id"))

	if err := ac.repo.Deactivate(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, alerts.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		ac.logger.Error("alert deactivate failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deactivated"})
}

// RearmAlert re-enables a previously triggered or deactivated alert
// POST /api/alerts/:id/rearm
func (ac *AlertController) RearmAlert(c *gin.Context) {
	userID := c.GetString("user_id")
	id := strings.TrimSpace(c.Param("id"))

	if err := ac.repo.Rearm(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, alerts.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		ac.logger.Error("alert rearm failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rearm alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert rearmed"})
}
