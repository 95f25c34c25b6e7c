// Package placement computes collision-free clip positions on a lane.
// All functions are pure: they read lane snapshots and return plans; the
// editor is responsible for applying plans to the model and persisting them.
package placement

import (
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

// ClipMove is one repositioning required to clear a placement conflict.
type ClipMove struct {
	ClipID        string `json:"clip_id"`
	NewPositionMs int64  `json:"new_position_ms"`
}

// ShiftPlan is the outcome of a placement proposal. An invalid plan means
// no forward-only shift sequence can satisfy the placement; callers fall
// back to NextAvailablePosition.
type ShiftPlan struct {
	Valid         bool       `json:"valid"`
	PositionMs    int64      `json:"position_ms"`
	AffectedClips []ClipMove `json:"affected_clips"`
}

// ProposePlacement snaps desiredPositionMs to the grid and plans the
// forward-only ripple shifts needed to place a clip of durationMs there.
//
// Clips already clear of the target interval are untouched. Conflicting
// clips that start at or after the target are pushed later by exactly the
// amount needed, cascading in position order so relative order is kept.
// A conflict with a clip that starts before the target cannot be resolved
// without a backward shift, so the plan is invalid.
func ProposePlacement(lane *timeline.Lane, desiredPositionMs, durationMs int64, excludeClipID string) ShiftPlan {
	pos := timeline.Quantize(desiredPositionMs)
	dur := timeline.Quantize(durationMs)
	end := pos + dur

	overlapping := lane.ClipsOverlapping(pos, end, excludeClipID)
	if len(overlapping) == 0 {
		return ShiftPlan{Valid: true, PositionMs: pos}
	}

	for _, c := range overlapping {
		if c.LanePositionMs < pos {
			return ShiftPlan{PositionMs: pos}
		}
	}

	// Ripple: walk the rest of the lane in position order, pushing each
	// clip that would now collide up to the cursor.
	ordered := laterClips(lane, pos, excludeClipID)
	plan := ShiftPlan{Valid: true, PositionMs: pos}
	cursor := end
	for _, c := range ordered {
		if c.LanePositionMs >= cursor {
			break
		}
		plan.AffectedClips = append(plan.AffectedClips, ClipMove{
			ClipID:        c.ID,
			NewPositionMs: cursor,
		})
		cursor += c.DurationMs
	}
	return plan
}

// NextAvailablePosition returns the deterministic fallback position:
// the end of the lane's last clip, or 0 for an empty lane.
func NextAvailablePosition(lane *timeline.Lane) int64 {
	return lane.LastClipEnd()
}

// Apply returns a copy of the lane with the plan's shifts performed and
// the placed clip moved to the plan position. The input lane is untouched.
func Apply(lane *timeline.Lane, plan ShiftPlan, clipID string) *timeline.Lane {
	out := &timeline.Lane{
		Number:       lane.Number,
		Label:        lane.Label,
		SyncOffsetMs: lane.SyncOffsetMs,
	}
	moves := make(map[string]int64, len(plan.AffectedClips))
	for _, m := range plan.AffectedClips {
		moves[m.ClipID] = m.NewPositionMs
	}
	for _, c := range lane.Clips {
		cc := *c
		if p, ok := moves[c.ID]; ok {
			cc.LanePositionMs = p
		}
		if c.ID == clipID {
			cc.LanePositionMs = plan.PositionMs
		}
		out.Clips = append(out.Clips, &cc)
	}
	out.SortClips()
	return out
}

func laterClips(lane *timeline.Lane, fromMs int64, excludeClipID string) []*timeline.Clip {
	var out []*timeline.Clip
	for _, c := range lane.Clips {
		if c.ID == excludeClipID || c.LanePositionMs < fromMs {
			continue
		}
		out = append(out, c)
	}
	// Position order; input lanes are kept sorted but gesture snapshots
	// may arrive unsorted after an in-memory move.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].LanePositionMs > out[j].LanePositionMs; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
