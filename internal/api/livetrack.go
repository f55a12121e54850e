package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adventuretrack/atsite/internal/livetrack"
	"github.com/adventuretrack/atsite/internal/repository"
)

// LivetrackHandler serves the livetrack24 beacon endpoints. The wire
// contract is fixed by deployed tracker clients: credential failures
// are 200 with body "0", protocol errors are 200 with an NOK body, and
// non-200 only appears when a collaborator is unreachable.
type LivetrackHandler struct {
	directory repository.UserDirectory
	location  repository.LocationService
	logger    *zap.Logger
}

func NewLivetrackHandler(directory repository.UserDirectory, location repository.LocationService, logger *zap.Logger) *LivetrackHandler {
	return &LivetrackHandler{directory: directory, location: location, logger: logger}
}

// Client handles GET /client.php?user=<hash>&pass=<code>. Returns the
// numeric user id, or "0" for any missing or invalid credential.
func (h *LivetrackHandler) Client(c *gin.Context) {
	userHash := c.Query("user")
	authCode := c.Query("pass")
	if userHash == "" || authCode == "" {
		c.String(http.StatusOK, "0")
		return
	}

	id, err := h.directory.CheckAuthCode(c.Request.Context(), userHash, authCode)
	if err != nil {
		h.logger.Error("could not reach user directory", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal communication error")
		return
	}
	if id == 0 {
		c.String(http.StatusOK, "0")
		return
	}
	c.String(http.StatusOK, strconv.FormatInt(id, 10))
}

// Track handles GET /track.php. Session start/end packets are
// acknowledged and dropped; live position packets are decoded and
// forwarded to the location service.
func (h *LivetrackHandler) Track(c *gin.Context) {
	pt, err := livetrack.Decode(c.Request.URL.Query())
	if err != nil {
		if errors.Is(err, livetrack.ErrNoSession) {
			c.String(http.StatusOK, "NOK : No session ID")
			return
		}
		var perr *livetrack.ProtocolError
		if errors.As(err, &perr) {
			c.String(http.StatusOK, "NOK : "+perr.Reason)
			return
		}
		h.logger.Error("failed to decode beacon packet", zap.Error(err))
		c.String(http.StatusOK, "NOK")
		return
	}
	if pt == nil {
		// Start/end marker: acknowledge, nothing downstream.
		c.Status(http.StatusOK)
		return
	}

	if err := h.location.InsertPoint(c.Request.Context(), pt); err != nil {
		// Beacon convention: faults stay 200, the failure is an
		// operational follow-up, not the tracker's problem.
		h.logger.Error("could not forward gps point",
			zap.Int64("user_id", pt.UserID),
			zap.Error(err),
		)
	}
	c.Status(http.StatusOK)
}
