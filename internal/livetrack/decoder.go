// Package livetrack decodes the livetrack24 compact tracking wire
// format into normalized GPS points.
package livetrack

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/adventuretrack/atsite/internal/models"
)

// Point type discriminators carried in the leolive parameter. Only
// live position packets decode into a point; the session markers are
// acknowledged and dropped.
const (
	PointTypeStart = 1
	PointTypeEnd   = 2
	PointTypeLive  = 4
)

// The session id packs the user id in its low 24 bits; the remaining
// bits are reserved by the protocol and ignored here.
const userIDMask = 0x00FFFFFF

// ProtocolError marks a beacon packet that violates the wire protocol
// and is rejected before any downstream call.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "livetrack protocol error: " + e.Reason
}

// ErrNoSession is the protocol violation with a fixed wire response:
// the beacon endpoint answers it with "NOK : No session ID".
var ErrNoSession = &ProtocolError{Reason: "missing session id"}

// Decode translates one beacon packet, given as its query parameters,
// into a GPS point.
//
// A packet missing its session id is a protocol violation. Packets
// with a non-live discriminator return nil, nil: accepted, no point.
// Speed and course decode to nil when absent; altitude has no unknown
// representation on the wire and is passed through as-is.
func Decode(vals url.Values) (*models.GPSPoint, error) {
	sid := vals.Get("sid")
	if sid == "" {
		return nil, ErrNoSession
	}
	sessionID, err := strconv.ParseUint(sid, 10, 64)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed session id %q", sid)}
	}

	pointType, err := strconv.Atoi(vals.Get("leolive"))
	if err != nil || pointType != PointTypeLive {
		return nil, nil
	}

	tm, err := strconv.ParseInt(vals.Get("tm"), 10, 64)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed timestamp %q", vals.Get("tm"))}
	}
	lat, err := strconv.ParseFloat(vals.Get("lat"), 64)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed latitude %q", vals.Get("lat"))}
	}
	lon, err := strconv.ParseFloat(vals.Get("lon"), 64)
	if err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("malformed longitude %q", vals.Get("lon"))}
	}
	// Meters above MSL, no decimals. 0 when absent.
	alt, _ := strconv.Atoi(vals.Get("alt"))

	return &models.GPSPoint{
		UserID:              int64(sessionID & userIDMask),
		Timestamp:           time.Unix(tm, 0).UTC(),
		Latitude:            lat,
		Longitude:           lon,
		HeightMMSL:          alt,
		SpeedOverGroundKmh:  optionalInt(vals.Get("sog")),
		CourseOverGroundDeg: optionalInt(vals.Get("cog")),
		Source:              models.SourceLivetrack,
	}, nil
}

// optionalInt parses an optional integer sub-field. Absent or
// unparsable values decode to unknown, never to zero.
func optionalInt(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
