package remote

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/filmroom/filmroom-agent/internal/timeline"
)

// SaveError represents a rejected persistence call.
type SaveError struct {
	StatusCode int
	Body       string
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("clip save failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx) and network errors.
// Client errors (4xx) are considered permanent.
func (e *SaveError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient posts clip mutations to the team-management app's data layer.
type HTTPClient struct {
	baseURL    string
	token      string
	orgSlug    string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token, orgSlug string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		orgSlug: orgSlug,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

type clipUpsertPayload struct {
	ClipID              string `json:"clip_id"`
	VideoID             string `json:"video_id,omitempty"`
	CameraLane          int    `json:"camera_lane"`
	LanePositionMs      int64  `json:"lane_position_ms"`
	DurationMs          int64  `json:"duration_ms,omitempty"`
	SourceStartOffsetMs int64  `json:"source_start_offset_ms,omitempty"`
	SourceEndOffsetMs   int64  `json:"source_end_offset_ms,omitempty"`
}

func (c *HTTPClient) CreateClip(ctx context.Context, clip *timeline.Clip) error {
	return c.post(ctx, "/api/timeline/clips", clipUpsertPayload{
		ClipID:              clip.ID,
		VideoID:             clip.VideoID,
		CameraLane:          clip.CameraLane,
		LanePositionMs:      clip.LanePositionMs,
		DurationMs:          clip.DurationMs,
		SourceStartOffsetMs: clip.SourceStartOffsetMs,
		SourceEndOffsetMs:   clip.SourceEndOffsetMs,
	})
}

func (c *HTTPClient) UpdateClipPosition(ctx context.Context, clipID string, lane int, positionMs int64) error {
	return c.post(ctx, "/api/timeline/clips/position", clipUpsertPayload{
		ClipID:         clipID,
		CameraLane:     lane,
		LanePositionMs: positionMs,
	})
}

func (c *HTTPClient) RemoveClip(ctx context.Context, clipID string) error {
	return c.post(ctx, "/api/timeline/clips/remove", clipUpsertPayload{ClipID: clipID})
}

func (c *HTTPClient) post(ctx context.Context, path string, payload clipUpsertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal clip payload: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Filmroom-Request-Id", generateRequestID())
	if c.deviceID != "" {
		req.Header.Set("X-Filmroom-Device-Id", c.deviceID)
	}

	// The app resolves the team org from the Host header subdomain.
	if c.orgSlug != "" {
		req.Host = c.orgSlug + ".app.filmroom.local"
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debug("clip save accepted", "path", path, "clip_id", payload.ClipID)
		return nil
	}

	return &SaveError{StatusCode: resp.StatusCode, Body: string(respBody)}
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
