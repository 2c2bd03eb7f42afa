package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stock_alerts_backend/models"
)

// TokenVerifier resolves the opaque bearer token presented at
// handshake to a user identifier.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// PlanResolver resolves a user's subscription plan.
type PlanResolver interface {
	Resolve(ctx context.Context, userID string) (models.Plan, error)
}

// Handler upgrades socket connections, checks plan entitlement and
// hands admitted clients to the hub.
type Handler struct {
	hub      *Hub
	tokens   TokenVerifier
	plans    PlanResolver
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(hub *Hub, tokens TokenVerifier, plans PlanResolver, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:    hub,
		tokens: tokens,
		plans:  plans,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Serve is the gin handler for GET /ws. The client presents its token
// as a query parameter or Authorization header; non-entitled plans get
// an immediate policy-violation close.
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	userID, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	plan, err := h.plans.Resolve(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("plan resolution failed",
			zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "plan lookup unavailable"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if !plan.RealtimeEntitled() {
		h.logger.Info("rejecting non-entitled connection",
			zap.String("user_id", userID), zap.String("plan", string(plan)))
		closeWithPolicy(conn, "real-time streaming requires a pro or enterprise plan")
		return
	}

	client := NewClient(conn, userID, plan, h.hub, h.logger)
	if err := h.hub.Register(client); err != nil {
		closeWithPolicy(conn, err.Error())
		return
	}
	client.Run()
}

func closeWithPolicy(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeTimeout)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	conn.Close()
}
