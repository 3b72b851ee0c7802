package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/svdberg/atwood-monitor/app/database"
	"github.com/svdberg/atwood-monitor/app/subscribers"
)

func NewHandler(itemRepo database.ItemRepository, emailRepo database.EmailRepository,
	pushRepo database.PushRepository, emails EmailRegistryInterface, pushes PushRegistryInterface,
	vapidPublicKey string) *Handler {
	return &Handler{
		itemRepo:       itemRepo,
		emailRepo:      emailRepo,
		pushRepo:       pushRepo,
		emails:         emails,
		pushes:         pushes,
		vapidPublicKey: vapidPublicKey,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	})
}

// GetStatus reports the last completed detection run.
func (h *Handler) GetStatus(c *gin.Context) {
	meta, err := h.itemRepo.GetMetadata(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_metadata", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if meta == nil {
		c.JSON(http.StatusOK, gin.H{
			"last_run_time":  "unknown",
			"last_seen_post": gin.H{},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"last_run_time":  meta.LastRunTime.Format(time.RFC3339Nano),
		"last_seen_post": meta.LastSeenPost,
	})
}

func (h *Handler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid email")
		return
	}

	err := h.emails.Register(c.Request.Context(), req.Email)
	if errors.Is(err, subscribers.ErrInvalidEmail) {
		c.String(http.StatusBadRequest, "Invalid email")
		return
	}
	if err != nil {
		slog.Error("Email subscription failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription requested. Check your email to confirm."})
}

func (h *Handler) SubscribeWeb(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	id, err := h.pushes.Register(c.Request.Context(), payload)
	switch {
	case errors.Is(err, subscribers.ErrMissingEndpoint):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing endpoint in subscription"})
		return
	case errors.Is(err, subscribers.ErrInvalidSubscription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription must be a JSON object"})
		return
	case err != nil:
		slog.Error("Push subscription failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Subscription registered",
		"subscription_id": id,
	})
}

func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Web push is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}

func (h *Handler) APIGetStats(c *gin.Context) {
	stats, err := subscribers.CollectStats(c.Request.Context(), h.emailRepo, h.pushRepo)
	if err != nil {
		slog.Error("Database error", "operation", "collect_stats", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// APIDelete removes an email subscriber or a push subscription. Email wins
// when both are given.
func (h *Handler) APIDelete(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "No identifier provided")
		return
	}

	ctx := c.Request.Context()

	switch {
	case req.Email != "":
		if err := h.emails.Remove(ctx, req.Email); err != nil {
			slog.Error("Database error", "operation", "delete_email", "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": req.Email})

	case req.SubscriptionID != "":
		if err := h.pushes.Remove(ctx, req.SubscriptionID); err != nil {
			slog.Error("Database error", "operation", "delete_subscription", "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": req.SubscriptionID})

	default:
		c.String(http.StatusBadRequest, "No identifier provided")
	}
}
