// Package remote talks to the web application's data-access layer.
// Clip persistence calls behave as idempotent upserts: the agent computes
// valid positions locally and the remote side performs no conflict
// resolution of its own.
package remote

import (
	"context"
	"log/slog"

	"github.com/filmroom/filmroom-agent/internal/timeline"
)

type Client interface {
	CreateClip(ctx context.Context, clip *timeline.Clip) error
	UpdateClipPosition(ctx context.Context, clipID string, lane int, positionMs int64) error
	RemoveClip(ctx context.Context, clipID string) error
}

// StubClient is used when remote sync is disabled; every call succeeds
// locally and is only logged.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) CreateClip(ctx context.Context, clip *timeline.Clip) error {
	c.logger.Debug("remote stub: create clip", "clip_id", clip.ID, "lane", clip.CameraLane)
	return nil
}

func (c *StubClient) UpdateClipPosition(ctx context.Context, clipID string, lane int, positionMs int64) error {
	c.logger.Debug("remote stub: update clip position",
		"clip_id", clipID, "lane", lane, "position_ms", positionMs)
	return nil
}

func (c *StubClient) RemoveClip(ctx context.Context, clipID string) error {
	c.logger.Debug("remote stub: remove clip", "clip_id", clipID)
	return nil
}
