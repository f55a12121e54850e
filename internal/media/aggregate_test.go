package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adventuretrack/atsite/internal/models"
)

func strPtr(s string) *string { return &s }

func TestAggregateNestsByCategoryAndConfig(t *testing.T) {
	items := []models.Media{
		{ID: 1, Category: models.MediaVideo, Path: "v/thumb.jpg", ConfigName: strPtr("thumb")},
		{ID: 2, Category: models.MediaVideo, Path: "v/orig.mp4", ConfigName: nil},
		{ID: 3, Category: models.MediaImage, Path: "i/thumb.jpg", ConfigName: strPtr("thumb")},
	}

	groups := Aggregate(items, true)
	require.NotNil(t, groups)

	// The null-config row is dropped entirely.
	require.Len(t, groups, 2)
	require.Len(t, groups[models.MediaVideo], 1)
	require.Len(t, groups[models.MediaImage], 1)
	assert.Equal(t, int64(1), groups[models.MediaVideo]["thumb"].ID)
	assert.Equal(t, int64(3), groups[models.MediaImage]["thumb"].ID)
}

func TestAggregateLastWriteWinsOnDuplicateKey(t *testing.T) {
	items := []models.Media{
		{ID: 1, Category: models.MediaVideo, Path: "a.mp4", ConfigName: strPtr("360p")},
		{ID: 2, Category: models.MediaVideo, Path: "b.mp4", ConfigName: strPtr("360p")},
	}

	groups := Aggregate(items, false)
	require.Len(t, groups[models.MediaVideo], 1)
	assert.Equal(t, int64(2), groups[models.MediaVideo]["360p"].ID)
}

func TestAggregateRedactsPerRow(t *testing.T) {
	items := []models.Media{
		{ID: 1, Category: models.MediaAudio, ConfigName: strPtr("voice"), TranscodeLog: strPtr("ffmpeg output")},
	}

	redacted := Aggregate(items, true)
	assert.Nil(t, redacted[models.MediaAudio]["voice"].TranscodeLog)

	// The caller's rows are untouched; redaction happens on the copy.
	require.NotNil(t, items[0].TranscodeLog)

	unredacted := Aggregate(items, false)
	require.NotNil(t, unredacted[models.MediaAudio]["voice"].TranscodeLog)
	assert.Equal(t, "ffmpeg output", *unredacted[models.MediaAudio]["voice"].TranscodeLog)
}

func TestAggregateEmptyAndAllNullConfig(t *testing.T) {
	assert.Nil(t, Aggregate(nil, true))
	assert.Nil(t, Aggregate([]models.Media{}, true))

	onlyOriginals := []models.Media{
		{ID: 1, Category: models.MediaVideo, ConfigName: nil},
	}
	assert.Nil(t, Aggregate(onlyOriginals, true))
}
