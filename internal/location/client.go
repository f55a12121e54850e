// Package location is the client for the external location service
// that owns GPS point storage.
package location

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adventuretrack/atsite/internal/models"
	"github.com/adventuretrack/atsite/internal/repository"
)

// callTimeout bounds every collaborator call. Beacon and bot surfaces
// must answer promptly even when the location service is down.
const callTimeout = 2 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: callTimeout},
	}
}

// InsertPoint hands one decoded point to the location service. Any
// transport or non-2xx failure maps to ErrUpstream; callers degrade to
// their documented sentinel responses instead of surfacing the fault.
func (c *Client) InsertPoint(ctx context.Context, pt *models.GPSPoint) error {
	body, err := json.Marshal(pt)
	if err != nil {
		return fmt.Errorf("encode gps point: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/points", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gps point request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: insert gps point: %v", repository.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: insert gps point: status %d", repository.ErrUpstream, resp.StatusCode)
	}
	return nil
}
