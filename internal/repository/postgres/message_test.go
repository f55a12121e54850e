package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adventuretrack/atsite/internal/models"
	"github.com/adventuretrack/atsite/internal/repository"
)

// Non-occurring negative id, so tests never collide with real rows
// even before the rollback.
const sentinelUser = -2147483648

// newTestScope connects to DATABASE_URL and opens a scoped transaction
// that is rolled back when the test ends, so no test leaves residue.
func newTestScope(t *testing.T) (*ScopedStore, context.Context) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping storage engine tests")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewMessageStore(pool)
	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, NewUserStore(pool).CreateSchema(ctx))

	scope, err := store.Scoped(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { scope.Close(ctx) })
	return scope, ctx
}

func strPtr(s string) *string        { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func TestInsertMessageValidation(t *testing.T) {
	// Validation runs before any query, no database needed.
	s := &MessageStore{}
	_, err := s.InsertMessage(context.Background(), repository.NewMessage{})
	assert.ErrorIs(t, err, repository.ErrValidation)
}

func TestInsertMediaValidation(t *testing.T) {
	s := &MessageStore{}

	_, err := s.InsertMedia(context.Background(), repository.NewMedia{
		Category: models.MediaVideo, Path: "x",
	})
	assert.ErrorIs(t, err, repository.ErrValidation)

	_, err = s.InsertMedia(context.Background(), repository.NewMedia{
		MsgID: 1, Category: "gif", Path: "x",
	})
	assert.ErrorIs(t, err, repository.ErrValidation)

	_, err = s.InsertMedia(context.Background(), repository.NewMedia{
		MsgID: 1, Category: models.MediaVideo,
	})
	assert.ErrorIs(t, err, repository.ErrValidation)
}

func TestInsertAndGetMessage(t *testing.T) {
	scope, ctx := newTestScope(t)

	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"message_id": 99, "chat": {"id": 5}}`)

	before := time.Now()
	id, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID:     sentinelUser,
		Timestamp:  timePtr(ts),
		Title:      strPtr("Titre"),
		Text:       strPtr("Bodytext"),
		RawPayload: payload,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	msg, err := scope.GetMessage(ctx, id, false)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, id, msg.ID)
	assert.Equal(t, int64(sentinelUser), msg.UserID)
	require.NotNil(t, msg.Timestamp)
	assert.True(t, ts.Equal(*msg.Timestamp))
	assert.Equal(t, "Titre", *msg.Title)
	assert.Equal(t, "Bodytext", *msg.Text)
	assert.JSONEq(t, string(payload), string(msg.RawPayload))
	// received is assigned by the engine, not the producer.
	assert.WithinDuration(t, before, msg.Received, time.Minute)
}

func TestGetMessageAbsent(t *testing.T) {
	scope, ctx := newTestScope(t)

	msg, err := scope.GetMessage(ctx, -1, true)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestRedactedReadStripsSensitiveFields(t *testing.T) {
	scope, ctx := newTestScope(t)

	id, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID:     sentinelUser,
		RawPayload: json.RawMessage(`{"secret": true}`),
	})
	require.NoError(t, err)

	_, err = scope.InsertMedia(ctx, repository.NewMedia{
		MsgID:        id,
		Category:     models.MediaVideo,
		Path:         "video_original/a_thumb.jpg",
		ConfigName:   strPtr("thumb"),
		TranscodeLog: strPtr("ffmpeg -i ..."),
	})
	require.NoError(t, err)

	redacted, err := scope.GetMessage(ctx, id, true)
	require.NoError(t, err)
	require.NotNil(t, redacted)
	assert.Nil(t, redacted.RawPayload)
	require.Contains(t, redacted.Media, models.MediaVideo)
	assert.Nil(t, redacted.Media[models.MediaVideo]["thumb"].TranscodeLog)

	unredacted, err := scope.GetMessage(ctx, id, false)
	require.NoError(t, err)
	assert.NotNil(t, unredacted.RawPayload)
	require.NotNil(t, unredacted.Media[models.MediaVideo]["thumb"].TranscodeLog)
}

func TestMediaAggregationThroughStore(t *testing.T) {
	scope, ctx := newTestScope(t)

	id, err := scope.InsertMessage(ctx, repository.NewMessage{UserID: sentinelUser})
	require.NoError(t, err)

	// (video, "thumb"), (video, null), (image, "thumb")
	for _, md := range []repository.NewMedia{
		{MsgID: id, Category: models.MediaVideo, Path: "video_original/t.jpg", ConfigName: strPtr("thumb")},
		{MsgID: id, Category: models.MediaVideo, Path: "video_original/o.mp4", Original: true},
		{MsgID: id, Category: models.MediaImage, Path: "image_original/t.jpg", ConfigName: strPtr("thumb")},
	} {
		_, err := scope.InsertMedia(ctx, md)
		require.NoError(t, err)
	}

	msg, err := scope.GetMessage(ctx, id, true)
	require.NoError(t, err)
	require.NotNil(t, msg)

	// The null-config original is excluded from the aggregated view.
	require.Len(t, msg.Media, 2)
	require.Len(t, msg.Media[models.MediaVideo], 1)
	require.Len(t, msg.Media[models.MediaImage], 1)
	assert.Equal(t, "video_original/t.jpg", msg.Media[models.MediaVideo]["thumb"].Path)
	assert.Equal(t, "image_original/t.jpg", msg.Media[models.MediaImage]["thumb"].Path)
}

func TestInsertMediaForeignKey(t *testing.T) {
	scope, ctx := newTestScope(t)

	_, err := scope.InsertMedia(ctx, repository.NewMedia{
		MsgID:    -1,
		Category: models.MediaImage,
		Path:     "image_original/orphan.jpg",
	})
	assert.ErrorIs(t, err, repository.ErrForeignKey)
}

func TestListMessagesEmptyForUnknownUser(t *testing.T) {
	scope, ctx := newTestScope(t)

	msgs, err := scope.ListMessages(ctx, sentinelUser, true)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestListMessagesOrdering(t *testing.T) {
	scope, ctx := newTestScope(t)

	older := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)

	oldID, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID: sentinelUser, Timestamp: timePtr(older), Text: strPtr("older"),
	})
	require.NoError(t, err)
	newID, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID: sentinelUser, Timestamp: timePtr(newer), Text: strPtr("newer"),
	})
	require.NoError(t, err)
	// Beacon-derived rows have no producer timestamp; they sort last.
	noTSID, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID: sentinelUser, Text: strPtr("no timestamp"),
	})
	require.NoError(t, err)

	msgs, err := scope.ListMessages(ctx, sentinelUser, true)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, newID, msgs[0].ID)
	assert.Equal(t, oldID, msgs[1].ID)
	assert.Equal(t, noTSID, msgs[2].ID)
}

func TestLatestPerUser(t *testing.T) {
	scope, ctx := newTestScope(t)

	// Far-future timestamps guarantee the sentinel users sort first
	// regardless of what else is in the table.
	base := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	otherUser := int64(sentinelUser + 1)

	_, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID: sentinelUser, Timestamp: timePtr(base), Text: strPtr("stale"),
	})
	require.NoError(t, err)
	freshA, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID: sentinelUser, Timestamp: timePtr(base.Add(2 * time.Hour)), Text: strPtr("fresh A"),
	})
	require.NoError(t, err)
	freshB, err := scope.InsertMessage(ctx, repository.NewMessage{
		UserID: otherUser, Timestamp: timePtr(base.Add(time.Hour)), Text: strPtr("fresh B"),
	})
	require.NoError(t, err)

	msgs, err := scope.LatestPerUser(ctx, 5, true)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.LessOrEqual(t, len(msgs), 5)

	// Never two rows for the same user.
	seen := make(map[int64]bool)
	for _, m := range msgs {
		assert.False(t, seen[m.UserID], "duplicate user %d", m.UserID)
		seen[m.UserID] = true
	}

	// Globally sorted by timestamp descending.
	for i := 1; i < len(msgs); i++ {
		if msgs[i-1].Timestamp == nil || msgs[i].Timestamp == nil {
			continue
		}
		assert.False(t, msgs[i-1].Timestamp.Before(*msgs[i].Timestamp))
	}

	// Each sentinel user is represented by their freshest message.
	assert.Equal(t, freshA, msgs[0].ID)
	assert.Equal(t, freshB, msgs[1].ID)
}

func TestScopedRollbackLeavesNoResidue(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping storage engine tests")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	store := NewMessageStore(pool)
	require.NoError(t, store.CreateSchema(ctx))

	scope, err := store.Scoped(ctx)
	require.NoError(t, err)

	msgs, err := scope.ListMessages(ctx, sentinelUser, true)
	require.NoError(t, err)
	require.Empty(t, msgs)

	_, err = scope.InsertMessage(ctx, repository.NewMessage{
		UserID: sentinelUser,
		Title:  strPtr("Titre"),
		Text:   strPtr("Bodytext"),
	})
	require.NoError(t, err)

	msgs, err = scope.ListMessages(ctx, sentinelUser, true)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Titre", *msgs[0].Title)
	assert.Equal(t, "Bodytext", *msgs[0].Text)

	// Roll back without committing.
	scope.Close(ctx)

	fresh, err := store.Scoped(ctx)
	require.NoError(t, err)
	defer fresh.Close(ctx)

	msgs, err = fresh.ListMessages(ctx, sentinelUser, true)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
