// Package ingest builds well-formed message/media payloads from
// producer-specific inputs before handing them to the store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adventuretrack/atsite/internal/models"
	"github.com/adventuretrack/atsite/internal/repository"
)

// FileMeta describes one producer attachment. SourcePath is the
// producer's file path; only its extension is reused, the file itself
// is retrieved through the injected FileFetcher.
type FileMeta struct {
	SourcePath string
	Width      *int
	Height     *int
	Duration   *float64
}

// LatLon is a chat-client location share.
type LatLon struct {
	Latitude  float64
	Longitude float64
}

// Unit is one inbound message from the chat platform, already resolved
// to a numeric user id by the bot collaborator. At most one of Video,
// Image, Audio, Location may be set (voice notes arrive as Audio).
type Unit struct {
	UserID     int64
	Timestamp  time.Time
	Title      *string
	Text       *string
	RawPayload json.RawMessage
	Video      *FileMeta
	Image      *FileMeta
	Audio      *FileMeta
	Location   *LatLon
}

// FileFetcher retrieves the producer's file at src into dst. The bot
// collaborator owns the actual download.
type FileFetcher func(ctx context.Context, src, dst string) error

// Normalizer translates inbound units into store writes.
type Normalizer struct {
	root     string
	store    repository.MessageRepository
	location repository.LocationService
	fetch    FileFetcher
	logger   *zap.Logger
}

func New(mediaRoot string, store repository.MessageRepository, location repository.LocationService, fetch FileFetcher, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		root:     mediaRoot,
		store:    store,
		location: location,
		fetch:    fetch,
		logger:   logger,
	}
}

// Ingest processes one inbound unit and returns the stored message id.
//
// A location short-circuits: the point goes to the location service
// and no message or media row is written, so the returned id is 0.
func (n *Normalizer) Ingest(ctx context.Context, unit Unit) (int64, error) {
	if unit.UserID == 0 {
		return 0, fmt.Errorf("%w: user_id is required", repository.ErrValidation)
	}

	category, meta, err := attachment(unit)
	if err != nil {
		return 0, err
	}

	if unit.Location != nil {
		pt := &models.GPSPoint{
			UserID:    unit.UserID,
			Timestamp: unit.Timestamp,
			Latitude:  unit.Location.Latitude,
			Longitude: unit.Location.Longitude,
			// The share carries no altitude
			HeightMMSL: 0,
			Source:     models.SourceTelegram,
		}
		if err := n.location.InsertPoint(ctx, pt); err != nil {
			return 0, fmt.Errorf("forward location share: %w", err)
		}
		n.logger.Debug("location share forwarded", zap.Int64("user_id", unit.UserID))
		return 0, nil
	}

	ts := unit.Timestamp
	msgID, err := n.store.InsertMessage(ctx, repository.NewMessage{
		UserID:     unit.UserID,
		Timestamp:  &ts,
		Title:      unit.Title,
		Text:       unit.Text,
		RawPayload: unit.RawPayload,
	})
	if err != nil {
		return 0, err
	}

	if meta == nil {
		return msgID, nil
	}

	relPath, err := n.stageFile(ctx, category, ts, meta)
	if err != nil {
		return 0, err
	}
	_, err = n.store.InsertMedia(ctx, repository.NewMedia{
		MsgID:     msgID,
		Category:  category,
		Path:      relPath,
		Original:  true,
		Width:     meta.Width,
		Height:    meta.Height,
		Duration:  meta.Duration,
		Timestamp: &ts,
	})
	if err != nil {
		return 0, err
	}
	n.logger.Debug("original media stored",
		zap.Int64("msg_id", msgID),
		zap.String("category", string(category)),
		zap.String("path", relPath),
	)
	return msgID, nil
}

// stageFile places the attachment under
// {root}/{category}_original/{timestamp}_{token}.{ext} and returns the
// path relative to the media root — the relative path is what gets
// persisted, so the root can move without invalidating rows.
func (n *Normalizer) stageFile(ctx context.Context, category models.MediaType, ts time.Time, meta *FileMeta) (string, error) {
	dir := string(category) + "_original"
	if err := os.MkdirAll(filepath.Join(n.root, dir), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	ext := strings.TrimPrefix(filepath.Ext(meta.SourcePath), ".")
	name := fmt.Sprintf("%s_%s.%s", ts.UTC().Format(time.RFC3339), uuid.New(), ext)
	relPath := filepath.Join(dir, name)

	if err := n.fetch(ctx, meta.SourcePath, filepath.Join(n.root, relPath)); err != nil {
		return "", fmt.Errorf("fetch %s attachment: %w", category, err)
	}
	return relPath, nil
}

// attachment picks the unit's single attachment, rejecting units that
// carry more than one.
func attachment(unit Unit) (models.MediaType, *FileMeta, error) {
	var (
		category models.MediaType
		meta     *FileMeta
		count    int
	)
	if unit.Video != nil {
		category, meta, count = models.MediaVideo, unit.Video, count+1
	}
	if unit.Image != nil {
		category, meta, count = models.MediaImage, unit.Image, count+1
	}
	if unit.Audio != nil {
		category, meta, count = models.MediaAudio, unit.Audio, count+1
	}
	if unit.Location != nil {
		count++
	}
	if count > 1 {
		return "", nil, fmt.Errorf("%w: unit carries %d attachments, want at most one", repository.ErrValidation, count)
	}
	return category, meta, nil
}
