package models

import (
	"encoding/json"
	"time"
)

// MediaType enumerates the media categories the store accepts. The
// values match the Postgres mediatype enum exactly.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

// Valid reports whether t is one of the known categories.
func (t MediaType) Valid() bool {
	switch t {
	case MediaVideo, MediaImage, MediaAudio:
		return true
	}
	return false
}

// MediaGroups is the nested view of a message's media:
// category → config name → media row. Media rows without a config name
// never appear here.
type MediaGroups map[MediaType]map[string]Media

// Message is one ingested message. Rows are append-only: written once
// by the ingest path, never updated or deleted.
//
// RawPayload preserves the producer's original envelope (e.g. the full
// Telegram message JSON) for audit and debugging. It must never leave
// the server unredacted; see Redact.
type Message struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Received   time.Time       `json:"received"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Title      *string         `json:"title,omitempty"`
	Text       *string         `json:"text,omitempty"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	Media      MediaGroups     `json:"media,omitempty"`
}

// Redact strips the fields that must not leave the core: the raw
// producer payload and, on every attached media row, the transcode log.
func (m *Message) Redact() {
	m.RawPayload = nil
	for _, byConf := range m.Media {
		for name, md := range byConf {
			md.Redact()
			byConf[name] = md
		}
	}
}

// Media is one stored media artifact belonging to a message. Path is
// always relative to the media root so the root can be relocated
// without rewriting rows. Original marks the producer's upload;
// derived artifacts carry the transcoding profile in ConfigName and
// the transcoder output in TranscodeLog.
type Media struct {
	ID           int64      `json:"id"`
	MsgID        int64      `json:"msg_id"`
	Category     MediaType  `json:"category"`
	Path         string     `json:"path"`
	Original     bool       `json:"original"`
	Width        *int       `json:"width,omitempty"`
	Height       *int       `json:"height,omitempty"`
	Duration     *float64   `json:"duration,omitempty"`
	TranscodeLog *string    `json:"transcode_log,omitempty"`
	ConfigName   *string    `json:"config_name,omitempty"`
	Received     time.Time  `json:"received"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
}

// Redact strips the transcoder log before the row leaves the core.
func (m *Media) Redact() {
	m.TranscodeLog = nil
}

// GPSPoint is a normalized position fix. It is not persisted by this
// service; decoded points are handed to the location service.
//
// HeightMMSL has no "unknown" representation on the beacon wire, so 0
// doubles as the unknown sentinel. Speed and course are nil when the
// producer did not report them.
type GPSPoint struct {
	UserID              int64     `json:"user_id"`
	Timestamp           time.Time `json:"timestamp"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	HeightMMSL          int       `json:"height_m_msl"`
	SpeedOverGroundKmh  *int      `json:"speed_over_ground_kmh,omitempty"`
	CourseOverGroundDeg *int      `json:"course_over_ground_deg,omitempty"`
	Source              string    `json:"source"`
}

// Point sources.
const (
	SourceLivetrack = "livetrack24"
	SourceTelegram  = "telegram"
)

// User is one row of the user directory consumed by the beacon
// client.php check. AuthCodeHash is a bcrypt hash of the friendly auth
// code; the plaintext code exists only at creation time.
type User struct {
	ID           int64     `json:"id"`
	UserHash     string    `json:"user_hash"`
	AuthCodeHash string    `json:"-"`
	FirstName    *string   `json:"first_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
