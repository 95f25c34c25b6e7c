// Package lanesync aligns camera lanes to a shared reference moment.
// The coach marks the same game moment on two lanes; the resolver turns
// that pair of anchors into a per-lane offset and a whole-lane shift plan.
package lanesync

import (
	"fmt"

	"github.com/filmroom/filmroom-agent/internal/placement"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

// Anchor marks one moment on one lane's local axis.
type Anchor struct {
	LaneNumber int   `json:"lane_number"`
	PositionMs int64 `json:"position_ms"`
}

// ConflictError reports that a lane shift would violate the no-overlap
// invariant or push clips before the start of the lane. The caller must
// either force the shift (resolved clip by clip through the placement
// ripple) or abort with no change.
type ConflictError struct {
	LaneNumber int
	ClipIDs    []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sync offset conflicts with %d clip(s) in lane %d", len(e.ClipIDs), e.LaneNumber)
}

// ComputeOffset returns the delta to add to the corrected lane so that its
// anchor lands on the reference lane's anchor. The result is grid-aligned.
func ComputeOffset(reference, corrected Anchor) int64 {
	return timeline.QuantizeDelta(reference.PositionMs - corrected.PositionMs)
}

// ProposeLaneShift plans moving every clip in the lane by deltaMs,
// preserving relative spacing. A uniform shift cannot introduce overlap
// between the lane's own clips, so the only conflict is a clip landing
// before position zero; those clips are reported in a ConflictError.
func ProposeLaneShift(lane *timeline.Lane, deltaMs int64) (placement.ShiftPlan, error) {
	deltaMs = timeline.QuantizeDelta(deltaMs)
	plan := placement.ShiftPlan{Valid: true}
	var blocked []string
	for _, c := range lane.Clips {
		newPos := c.LanePositionMs + deltaMs
		if newPos < 0 {
			blocked = append(blocked, c.ID)
			continue
		}
		plan.AffectedClips = append(plan.AffectedClips, placement.ClipMove{
			ClipID:        c.ID,
			NewPositionMs: newPos,
		})
	}
	if len(blocked) > 0 {
		return placement.ShiftPlan{}, &ConflictError{LaneNumber: lane.Number, ClipIDs: blocked}
	}
	return plan, nil
}

// ForceLaneShift plans the shift even when some clips cannot move the full
// delta. Blocked clips are clamped to zero and the clips behind them ripple
// forward exactly as a placement would, so the lane stays overlap-free;
// relative spacing collapses only where clamping made it unavoidable.
func ForceLaneShift(lane *timeline.Lane, deltaMs int64) placement.ShiftPlan {
	deltaMs = timeline.QuantizeDelta(deltaMs)
	ordered := append([]*timeline.Clip(nil), lane.Clips...)
	sortByPosition(ordered)

	plan := placement.ShiftPlan{Valid: true}
	var cursor int64
	for _, c := range ordered {
		pos := c.LanePositionMs + deltaMs
		if pos < 0 {
			pos = 0
		}
		if pos < cursor {
			pos = cursor
		}
		cursor = pos + c.DurationMs
		plan.AffectedClips = append(plan.AffectedClips, placement.ClipMove{
			ClipID:        c.ID,
			NewPositionMs: pos,
		})
	}
	return plan
}

func sortByPosition(clips []*timeline.Clip) {
	for i := 1; i < len(clips); i++ {
		for j := i; j > 0 && clips[j-1].LanePositionMs > clips[j].LanePositionMs; j-- {
			clips[j-1], clips[j] = clips[j], clips[j-1]
		}
	}
}
