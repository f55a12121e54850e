package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/adventuretrack/atsite/internal/models"
)

// Sentinel errors for the storage and collaborator boundaries. Callers
// match with errors.Is; concrete causes are wrapped around them.
var (
	// ErrValidation marks an insert rejected because a required field
	// is missing. Nothing is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrForeignKey marks a media insert whose msg_id references no
	// existing message. Enforced by the database, not the application.
	ErrForeignKey = errors.New("foreign key violation")

	// ErrUpstream marks a collaborator (user directory, location
	// service) that could not be reached within its call deadline.
	ErrUpstream = errors.New("upstream unavailable")
)

// NewMessage is the payload for a message insert. UserID is required;
// zero is reserved as the no-user marker and rejected. Received is
// always assigned server-side at insert time and cannot be supplied.
type NewMessage struct {
	UserID     int64
	Timestamp  *time.Time
	Title      *string
	Text       *string
	RawPayload json.RawMessage
}

// NewMedia is the payload for a media insert. MsgID, Category and Path
// are required. Original defaults to false (a derived artifact).
type NewMedia struct {
	MsgID        int64
	Category     models.MediaType
	Path         string
	Original     bool
	Width        *int
	Height       *int
	Duration     *float64
	TranscodeLog *string
	ConfigName   *string
	Timestamp    *time.Time
}

// MessageRepository is the only way in or out of the message and media
// tables.
//
// Every read takes a redact flag. When set — the default for anything
// externally facing — raw_payload and transcode_log are stripped
// before the result leaves the store. This is a hard contract: those
// fields may contain a third-party platform's unredacted payload.
type MessageRepository interface {
	// InsertMessage persists a message and returns its generated id.
	InsertMessage(ctx context.Context, msg NewMessage) (int64, error)

	// InsertMedia persists a media row and returns its generated id.
	InsertMedia(ctx context.Context, media NewMedia) (int64, error)

	// GetMessage returns one message with its grouped media, or
	// nil, nil if the id does not exist.
	GetMessage(ctx context.Context, id int64, redact bool) (*models.Message, error)

	// ListMessages returns all of a user's messages, newest first by
	// producer timestamp (nulls last), each with its grouped media.
	// Returns an empty slice, not nil, for users without messages.
	ListMessages(ctx context.Context, userID int64, redact bool) ([]models.Message, error)

	// LatestPerUser returns at most limit messages, at most one per
	// user — each user's freshest by timestamp — globally re-sorted
	// newest first.
	LatestPerUser(ctx context.Context, limit int, redact bool) ([]models.Message, error)
}

// UserDirectory resolves beacon credentials to a numeric user id.
type UserDirectory interface {
	// CheckAuthCode returns the user id for a hash/auth-code pair, or
	// 0 when the credentials do not match any user. A non-nil error
	// means the directory itself could not answer.
	CheckAuthCode(ctx context.Context, userHash, authCode string) (int64, error)
}

// LocationService receives decoded GPS points. It is an external
// collaborator; this service never stores points itself.
type LocationService interface {
	InsertPoint(ctx context.Context, pt *models.GPSPoint) error
}
