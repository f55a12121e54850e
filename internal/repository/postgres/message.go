package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adventuretrack/atsite/internal/media"
	"github.com/adventuretrack/atsite/internal/models"
	"github.com/adventuretrack/atsite/internal/repository"
)

// Idempotent DDL for the message/media schema. The enum creation has
// no IF NOT EXISTS form, so it is guarded against duplicate_object.
const schemaSQL = `
DO $$ BEGIN
	CREATE TYPE mediatype AS ENUM ('video', 'image', 'audio');
EXCEPTION
	WHEN duplicate_object THEN NULL;
END $$;

CREATE TABLE IF NOT EXISTS message (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL,
	-- Time the message was received by the server
	received    TIMESTAMPTZ NOT NULL,
	-- Producer-supplied creation time; absent for beacon-derived rows
	timestamp   TIMESTAMPTZ,
	-- Might be pure media or pure location, so title/text can be omitted
	title       TEXT,
	text        TEXT,
	raw_payload JSONB
);

CREATE TABLE IF NOT EXISTS media (
	id            BIGSERIAL PRIMARY KEY,
	msg_id        BIGINT NOT NULL REFERENCES message (id),
	category      mediatype NOT NULL,
	-- Relative to the media root
	path          VARCHAR(255) NOT NULL,
	-- True for the producer's upload, false for transcoded artifacts
	original      BOOLEAN NOT NULL DEFAULT false,
	-- Only for video, image
	width         INTEGER,
	height        INTEGER,
	-- Only for video, audio
	duration      DOUBLE PRECISION,
	transcode_log TEXT,
	-- Transcoding profile, e.g. 'thumb', '360p'
	config_name   VARCHAR(255),
	received      TIMESTAMPTZ NOT NULL,
	timestamp     TIMESTAMPTZ
);

-- Media is only ever looked up by owning message
CREATE INDEX IF NOT EXISTS media_msg_id_index ON media (msg_id);
`

// MessageStore is the storage engine for the message and media tables.
// All access goes through q, which is either the pool or, for a scoped
// store, a single transaction.
type MessageStore struct {
	pool *pgxpool.Pool
	q    Querier
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool, q: pool}
}

// CreateSchema creates the message/media tables, the mediatype enum
// and the msg_id index. Safe to run on every startup.
func (s *MessageStore) CreateSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create message schema: %w", err)
	}
	return nil
}

// InsertMessage persists one message. received is assigned here, from
// the server clock, never from the producer.
func (s *MessageStore) InsertMessage(ctx context.Context, msg repository.NewMessage) (int64, error) {
	if msg.UserID == 0 {
		return 0, fmt.Errorf("%w: user_id is required", repository.ErrValidation)
	}

	query := `
		INSERT INTO message (user_id, received, timestamp, title, text, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, query,
		msg.UserID,
		time.Now().UTC(),
		msg.Timestamp,
		msg.Title,
		msg.Text,
		msg.RawPayload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

// InsertMedia persists one media row. The msg_id reference is enforced
// by the database; a dangling reference surfaces as ErrForeignKey.
func (s *MessageStore) InsertMedia(ctx context.Context, md repository.NewMedia) (int64, error) {
	switch {
	case md.MsgID == 0:
		return 0, fmt.Errorf("%w: msg_id is required", repository.ErrValidation)
	case !md.Category.Valid():
		return 0, fmt.Errorf("%w: unknown media category %q", repository.ErrValidation, md.Category)
	case md.Path == "":
		return 0, fmt.Errorf("%w: path is required", repository.ErrValidation)
	}

	query := `
		INSERT INTO media (msg_id, category, path, original, width, height, duration,
			transcode_log, config_name, received, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	var id int64
	err := s.q.QueryRow(ctx, query,
		md.MsgID,
		string(md.Category),
		md.Path,
		md.Original,
		md.Width,
		md.Height,
		md.Duration,
		md.TranscodeLog,
		md.ConfigName,
		time.Now().UTC(),
		md.Timestamp,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503 = foreign_key_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, fmt.Errorf("%w: message %d does not exist", repository.ErrForeignKey, md.MsgID)
		}
		return 0, fmt.Errorf("insert media: %w", err)
	}
	return id, nil
}

// Columns of the message LEFT JOIN media queries. Every read goes
// through this shape so scanJoinedRows is the single row→record
// boundary.
const joinedColumns = `
	m.id, m.user_id, m.received, m.timestamp, m.title, m.text, m.raw_payload,
	md.id, md.msg_id, md.category, md.path, md.original, md.width, md.height,
	md.duration, md.transcode_log, md.config_name, md.received, md.timestamp`

// GetMessage fetches one message with its grouped media. Returns
// nil, nil when the id does not exist.
func (s *MessageStore) GetMessage(ctx context.Context, id int64, redact bool) (*models.Message, error) {
	query := `
		SELECT ` + joinedColumns + `
		FROM message m
		LEFT JOIN media md ON md.msg_id = m.id
		WHERE m.id = $1`

	rows, err := s.q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	msgs, err := scanJoinedRows(rows, redact)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// ListMessages returns all of a user's messages, newest first by
// producer timestamp with nulls last.
func (s *MessageStore) ListMessages(ctx context.Context, userID int64, redact bool) ([]models.Message, error) {
	query := `
		SELECT ` + joinedColumns + `
		FROM message m
		LEFT JOIN media md ON md.msg_id = m.id
		WHERE m.user_id = $1
		ORDER BY m.timestamp DESC NULLS LAST, m.id DESC`

	rows, err := s.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs, err := scanJoinedRows(rows, redact)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// LatestPerUser returns at most limit messages, at most one per user.
//
// Top-1-per-group: DISTINCT ON picks each user's freshest message,
// the middle subquery re-sorts those globally by timestamp and caps
// them, and only then is media joined in — so the LIMIT counts
// messages, not joined rows.
func (s *MessageStore) LatestPerUser(ctx context.Context, limit int, redact bool) ([]models.Message, error) {
	query := `
		SELECT ` + joinedColumns + `
		FROM (
			SELECT *
			FROM (
				SELECT DISTINCT ON (user_id) *
				FROM message
				ORDER BY user_id, timestamp DESC NULLS LAST
			) latest
			ORDER BY timestamp DESC NULLS LAST
			LIMIT $1
		) m
		LEFT JOIN media md ON md.msg_id = m.id
		ORDER BY m.timestamp DESC NULLS LAST, m.id DESC`

	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("latest per user: %w", err)
	}
	msgs, err := scanJoinedRows(rows, redact)
	if err != nil {
		return nil, fmt.Errorf("latest per user: %w", err)
	}
	return msgs, nil
}

// scanJoinedRows converts the flat message×media rows into typed
// messages with nested media, preserving row order. Media grouping and
// per-row redaction are delegated to the aggregator; message-level
// redaction (raw_payload) happens here.
func scanJoinedRows(rows pgx.Rows, redact bool) ([]models.Message, error) {
	defer rows.Close()

	msgs := make([]models.Message, 0)
	index := make(map[int64]int)
	flat := make(map[int64][]models.Media)

	for rows.Next() {
		var (
			m models.Message

			mdID           *int64
			mdMsgID        *int64
			mdCategory     *string
			mdPath         *string
			mdOriginal     *bool
			mdWidth        *int
			mdHeight       *int
			mdDuration     *float64
			mdTranscodeLog *string
			mdConfigName   *string
			mdReceived     *time.Time
			mdTimestamp    *time.Time
		)
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Received, &m.Timestamp, &m.Title, &m.Text, &m.RawPayload,
			&mdID, &mdMsgID, &mdCategory, &mdPath, &mdOriginal, &mdWidth, &mdHeight,
			&mdDuration, &mdTranscodeLog, &mdConfigName, &mdReceived, &mdTimestamp,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}

		if _, seen := index[m.ID]; !seen {
			if redact {
				m.RawPayload = nil
			}
			index[m.ID] = len(msgs)
			msgs = append(msgs, m)
		}

		// Left join: media columns are all null for messages without media.
		if mdID != nil {
			md := models.Media{
				ID:           *mdID,
				MsgID:        *mdMsgID,
				Category:     models.MediaType(*mdCategory),
				Path:         *mdPath,
				Original:     *mdOriginal,
				Width:        mdWidth,
				Height:       mdHeight,
				Duration:     mdDuration,
				TranscodeLog: mdTranscodeLog,
				ConfigName:   mdConfigName,
				Timestamp:    mdTimestamp,
			}
			if mdReceived != nil {
				md.Received = *mdReceived
			}
			flat[m.ID] = append(flat[m.ID], md)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}

	for id, items := range flat {
		msgs[index[id]].Media = media.Aggregate(items, redact)
	}
	return msgs, nil
}
