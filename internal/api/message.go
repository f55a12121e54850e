package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adventuretrack/atsite/internal/middleware"
	"github.com/adventuretrack/atsite/internal/models"
	"github.com/adventuretrack/atsite/internal/repository"
)

// MessageHandler exposes the store's write and read operations as an
// RPC-style JSON surface.
type MessageHandler struct {
	repo   repository.MessageRepository
	logger *zap.Logger
}

func NewMessageHandler(repo repository.MessageRepository, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{repo: repo, logger: logger}
}

// redactFor decides redaction for a request. Unredacted data is only
// handed to callers holding the internal claim who ask explicitly;
// everyone else gets the redacted view regardless of what they ask.
func redactFor(c *gin.Context) bool {
	return !(middleware.IsInternal(c) && c.Query("raw") == "1")
}

type insertMessageRequest struct {
	UserID     *int64          `json:"user_id" binding:"required"`
	Timestamp  *string         `json:"timestamp"`
	Title      *string         `json:"title"`
	Text       *string         `json:"text"`
	RawPayload json.RawMessage `json:"raw_payload"`
}

// Insert handles POST /v1/messages.
func (h *MessageHandler) Insert(c *gin.Context) {
	var req insertMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := repository.NewMessage{
		Title:      req.Title,
		Text:       req.Text,
		RawPayload: req.RawPayload,
	}
	if req.UserID != nil {
		msg.UserID = *req.UserID
	}
	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be an ISO-8601 instant"})
			return
		}
		msg.Timestamp = &ts
	}

	id, err := h.repo.InsertMessage(c.Request.Context(), msg)
	if err != nil {
		if errors.Is(err, repository.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to insert message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to insert message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type insertMediaRequest struct {
	MsgID        *int64   `json:"msg_id" binding:"required"`
	Category     string   `json:"category" binding:"required"`
	Path         string   `json:"path" binding:"required"`
	Original     bool     `json:"original"`
	Width        *int     `json:"width"`
	Height       *int     `json:"height"`
	Duration     *float64 `json:"duration"`
	TranscodeLog *string  `json:"transcode_log"`
	ConfigName   *string  `json:"config_name"`
	Timestamp    *string  `json:"timestamp"`
}

// InsertMedia handles POST /v1/media.
func (h *MessageHandler) InsertMedia(c *gin.Context) {
	var req insertMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	md := repository.NewMedia{
		Category:     models.MediaType(req.Category),
		Path:         req.Path,
		Original:     req.Original,
		Width:        req.Width,
		Height:       req.Height,
		Duration:     req.Duration,
		TranscodeLog: req.TranscodeLog,
		ConfigName:   req.ConfigName,
	}
	if req.MsgID != nil {
		md.MsgID = *req.MsgID
	}
	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be an ISO-8601 instant"})
			return
		}
		md.Timestamp = &ts
	}

	id, err := h.repo.InsertMedia(c.Request.Context(), md)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrForeignKey):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to insert media", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to insert media"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Get handles GET /v1/messages/:id.
func (h *MessageHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message ID"})
		return
	}

	msg, err := h.repo.GetMessage(c.Request.Context(), id, redactFor(c))
	if err != nil {
		h.logger.Error("failed to get message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get message"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

// ListByUser handles GET /v1/users/:id/messages.
func (h *MessageHandler) ListByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	msgs, err := h.repo.ListMessages(c.Request.Context(), userID, redactFor(c))
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Latest handles GET /v1/messages/latest?limit=5 — the most recent
// message of each user, newest first.
func (h *MessageHandler) Latest(c *gin.Context) {
	limit := 5
	if l := c.Query("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	msgs, err := h.repo.LatestPerUser(c.Request.Context(), limit, redactFor(c))
	if err != nil {
		h.logger.Error("failed to fetch latest messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch latest messages"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}
