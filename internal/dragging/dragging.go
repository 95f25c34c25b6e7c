// Package dragging turns pointer gestures into positioning requests.
// It is toolkit-agnostic: any front end drives the Begin/Move/End state
// machine with pixel deltas, and the controller converts them to grid
// time using the active zoom level. Vertical movement is ignored; a
// clip's camera lane is intrinsic to the clip, not a drop target.
package dragging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/filmroom/filmroom-agent/internal/placement"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseDragging Phase = "dragging"
)

// SubjectKind tags what is under the pointer. Markers move freely;
// clips go through the positioning engine.
type SubjectKind string

const (
	KindClip   SubjectKind = "clip"
	KindMarker SubjectKind = "marker"
)

// Subject identifies the dragged entity for the whole gesture.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

var (
	ErrGestureActive = errors.New("a drag gesture is already active")
	ErrNoGesture     = errors.New("no drag gesture in progress")
)

// CommitResult reports what a finished gesture did to the model.
type CommitResult struct {
	Committed       bool                 `json:"committed"`
	PositionMs      int64                `json:"position_ms"`
	FallbackApplied bool                 `json:"fallback_applied"`
	AffectedClips   []placement.ClipMove `json:"affected_clips,omitempty"`
}

// Committer is the commit path behind End: the editor service, which
// persists shifted clips before the dragged clip itself.
type Committer interface {
	MoveClip(ctx context.Context, clipID string, desiredPositionMs int64) (CommitResult, error)
	MoveMarker(ctx context.Context, markerID string, timeMs int64) error
}

// DefaultJitterMs cancels gestures whose net displacement stays below
// half a grid step; pointer noise must never mutate the model.
const DefaultJitterMs = timeline.GridMs / 2

type Controller struct {
	mu        sync.Mutex
	committer Committer
	logger    *slog.Logger

	pixelsPerSecond float64
	jitterMs        int64

	phase    Phase
	subject  Subject
	originMs int64
	deltaMs  int64
}

func NewController(committer Committer, logger *slog.Logger) *Controller {
	return &Controller{
		committer:       committer,
		logger:          logger,
		pixelsPerSecond: 100,
		jitterMs:        DefaultJitterMs,
		phase:           PhaseIdle,
	}
}

// SetZoom updates the pixel density of the timeline view.
func (c *Controller) SetZoom(pixelsPerSecond float64) {
	c.mu.Lock()
	if pixelsPerSecond > 0 {
		c.pixelsPerSecond = pixelsPerSecond
	}
	c.mu.Unlock()
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Begin captures the subject and its current position. The subject is
// fixed for the whole gesture.
func (c *Controller) Begin(subject Subject, originMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle {
		return ErrGestureActive
	}
	if subject.ID == "" {
		return fmt.Errorf("drag subject has no id")
	}
	c.phase = PhaseDragging
	c.subject = subject
	c.originMs = originMs
	c.deltaMs = 0
	return nil
}

// Move accumulates a horizontal pointer delta and returns the candidate
// position, snapped to the grid for clips. No model mutation happens here.
func (c *Controller) Move(deltaPx float64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseDragging {
		return 0, ErrNoGesture
	}
	c.deltaMs += int64(deltaPx / c.pixelsPerSecond * 1000)
	return c.candidateLocked(), nil
}

func (c *Controller) candidateLocked() int64 {
	pos := c.originMs + c.deltaMs
	if c.subject.Kind == KindClip {
		return timeline.Quantize(pos)
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// End finishes the gesture. Displacement below the jitter threshold
// cancels with zero effect; otherwise the final position is committed
// through the positioning engine (clips) or directly (markers).
func (c *Controller) End(ctx context.Context) (CommitResult, error) {
	c.mu.Lock()
	if c.phase != PhaseDragging {
		c.mu.Unlock()
		return CommitResult{}, ErrNoGesture
	}
	subject := c.subject
	origin := c.originMs
	delta := c.deltaMs
	target := c.candidateLocked()
	jitter := c.jitterMs
	c.phase = PhaseIdle
	c.mu.Unlock()

	if abs64(delta) < jitter {
		if c.logger != nil {
			c.logger.Debug("drag cancelled below jitter threshold",
				"subject", subject.ID, "delta_ms", delta)
		}
		return CommitResult{Committed: false, PositionMs: origin}, nil
	}

	switch subject.Kind {
	case KindMarker:
		if err := c.committer.MoveMarker(ctx, subject.ID, target); err != nil {
			return CommitResult{}, err
		}
		return CommitResult{Committed: true, PositionMs: target}, nil
	default:
		return c.committer.MoveClip(ctx, subject.ID, target)
	}
}

// Cancel aborts the gesture with zero mutation, e.g. a release outside
// a valid target or an abort key.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.phase == PhaseDragging && c.logger != nil {
		c.logger.Debug("drag cancelled", "subject", c.subject.ID)
	}
	c.phase = PhaseIdle
	c.deltaMs = 0
	c.mu.Unlock()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
