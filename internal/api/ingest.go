package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adventuretrack/atsite/internal/ingest"
	"github.com/adventuretrack/atsite/internal/repository"
)

// IngestHandler accepts producer units from the bot collaborator and
// runs them through the normalizer.
type IngestHandler struct {
	normalizer *ingest.Normalizer
	logger     *zap.Logger
}

func NewIngestHandler(normalizer *ingest.Normalizer, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{normalizer: normalizer, logger: logger}
}

type fileMetaRequest struct {
	SourcePath string   `json:"source_path" binding:"required"`
	Width      *int     `json:"width"`
	Height     *int     `json:"height"`
	Duration   *float64 `json:"duration"`
}

func (r *fileMetaRequest) meta() *ingest.FileMeta {
	if r == nil {
		return nil
	}
	return &ingest.FileMeta{
		SourcePath: r.SourcePath,
		Width:      r.Width,
		Height:     r.Height,
		Duration:   r.Duration,
	}
}

type ingestRequest struct {
	UserID     *int64           `json:"user_id" binding:"required"`
	Timestamp  string           `json:"timestamp" binding:"required"`
	Title      *string          `json:"title"`
	Text       *string          `json:"text"`
	RawPayload json.RawMessage  `json:"raw_payload"`
	Video      *fileMetaRequest `json:"video"`
	Image      *fileMetaRequest `json:"image"`
	Audio      *fileMetaRequest `json:"audio"`
	Location   *ingest.LatLon   `json:"location"`
}

// Ingest handles POST /v1/ingest. Location shares return id 0: the
// point went to the location service and no message row exists.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be an ISO-8601 instant"})
		return
	}

	unit := ingest.Unit{
		Timestamp:  ts,
		Title:      req.Title,
		Text:       req.Text,
		RawPayload: req.RawPayload,
		Video:      req.Video.meta(),
		Image:      req.Image.meta(),
		Audio:      req.Audio.meta(),
		Location:   req.Location,
	}
	if req.UserID != nil {
		unit.UserID = *req.UserID
	}

	id, err := h.normalizer.Ingest(c.Request.Context(), unit)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrUpstream):
			h.logger.Error("ingest upstream failure", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "a collaborator is unavailable"})
		default:
			h.logger.Error("failed to ingest unit", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest unit"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}
