package placement

import (
	"testing"

	"github.com/filmroom/filmroom-agent/internal/timeline"
)

func clip(id string, pos, dur int64) *timeline.Clip {
	return &timeline.Clip{
		ID:                id,
		VideoID:           "video-" + id,
		LanePositionMs:    pos,
		DurationMs:        dur,
		SourceEndOffsetMs: dur,
	}
}

func lane(clips ...*timeline.Clip) *timeline.Lane {
	return &timeline.Lane{Number: 1, Clips: clips}
}

func TestProposePlacement_EmptyLane(t *testing.T) {
	plan := ProposePlacement(lane(), 0, 5000, "")
	if !plan.Valid {
		t.Fatal("plan on empty lane should be valid")
	}
	if len(plan.AffectedClips) != 0 {
		t.Errorf("affected clips = %d, want 0", len(plan.AffectedClips))
	}
}

func TestProposePlacement_Idempotent(t *testing.T) {
	// A clip proposed at its own current position conflicts with nothing.
	l := lane(clip("a", 0, 10000), clip("b", 15000, 5000))

	plan := ProposePlacement(l, 0, 10000, "a")
	if !plan.Valid {
		t.Fatal("re-placing a clip at its own position should be valid")
	}
	if len(plan.AffectedClips) != 0 {
		t.Errorf("affected clips = %d, want 0", len(plan.AffectedClips))
	}
	if plan.PositionMs != 0 {
		t.Errorf("position = %d, want 0", plan.PositionMs)
	}
}

func TestProposePlacement_SnapsToGrid(t *testing.T) {
	plan := ProposePlacement(lane(), 1234, 5000, "")
	if plan.PositionMs != 1200 {
		t.Errorf("position = %d, want 1200", plan.PositionMs)
	}
}

func TestProposePlacement_ForwardRipple(t *testing.T) {
	// Scenario: A(0, 10s) dragged to 12s must push B(15s, 5s) to 22s.
	l := lane(clip("a", 0, 10000), clip("b", 15000, 5000))

	plan := ProposePlacement(l, 12000, 10000, "a")
	if !plan.Valid {
		t.Fatal("forward ripple should produce a valid plan")
	}
	if len(plan.AffectedClips) != 1 {
		t.Fatalf("affected clips = %d, want 1", len(plan.AffectedClips))
	}
	move := plan.AffectedClips[0]
	if move.ClipID != "b" {
		t.Errorf("affected clip = %s, want b", move.ClipID)
	}
	if move.NewPositionMs < 22000 {
		t.Errorf("b moved to %d, want >= 22000", move.NewPositionMs)
	}

	applied := Apply(l, plan, "a")
	if err := applied.Validate(); err != nil {
		t.Errorf("applied lane violates invariant: %v", err)
	}
}

func TestProposePlacement_TransitiveRipple(t *testing.T) {
	// Pushing b must cascade into c, which sits right behind it.
	l := lane(
		clip("a", 0, 10000),
		clip("b", 12000, 4000),
		clip("c", 16000, 4000),
	)

	plan := ProposePlacement(l, 10000, 4000, "")
	if !plan.Valid {
		t.Fatal("cascading ripple should be valid")
	}
	if len(plan.AffectedClips) != 2 {
		t.Fatalf("affected clips = %d, want 2", len(plan.AffectedClips))
	}
	if plan.AffectedClips[0].ClipID != "b" || plan.AffectedClips[0].NewPositionMs != 14000 {
		t.Errorf("first move = %+v, want b -> 14000", plan.AffectedClips[0])
	}
	if plan.AffectedClips[1].ClipID != "c" || plan.AffectedClips[1].NewPositionMs != 18000 {
		t.Errorf("second move = %+v, want c -> 18000", plan.AffectedClips[1])
	}
}

func TestProposePlacement_RippleStopsAtGap(t *testing.T) {
	// d is far enough out that the ripple never reaches it.
	l := lane(
		clip("b", 1000, 1000),
		clip("d", 60000, 1000),
	)

	plan := ProposePlacement(l, 1000, 1000, "")
	if !plan.Valid {
		t.Fatal("plan should be valid")
	}
	if len(plan.AffectedClips) != 1 {
		t.Fatalf("affected clips = %d, want 1 (ripple must stop at the gap)", len(plan.AffectedClips))
	}
}

func TestProposePlacement_BackwardShiftInvalid(t *testing.T) {
	// Dropping over the tail of an earlier clip would need that clip to
	// move backward, which is never allowed.
	l := lane(clip("a", 0, 30000))

	plan := ProposePlacement(l, 10000, 20000, "")
	if plan.Valid {
		t.Fatal("plan requiring a backward shift must be invalid")
	}
}

func TestProposePlacement_SecondClipOverlapsFirst(t *testing.T) {
	// Scenario B from the drag flow: drop at 10s over a 30s clip at 0 is
	// invalid; the fallback is the lane end.
	l := lane(clip("first", 0, 30000))

	plan := ProposePlacement(l, 10000, 20000, "")
	if plan.Valid {
		t.Fatal("overlapping drop over an earlier clip must be invalid")
	}
	if got := NextAvailablePosition(l); got != 30000 {
		t.Errorf("NextAvailablePosition() = %d, want 30000", got)
	}
}

func TestNextAvailablePosition(t *testing.T) {
	tests := []struct {
		name string
		lane *timeline.Lane
		want int64
	}{
		{"empty lane", lane(), 0},
		{"single clip", lane(clip("a", 5000, 3000)), 8000},
		{"uses max end", lane(clip("a", 0, 10000), clip("b", 4000, 2000)), 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextAvailablePosition(tt.lane); got != tt.want {
				t.Errorf("NextAvailablePosition() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	l := lane(clip("a", 0, 10000), clip("b", 15000, 5000))

	plan := ProposePlacement(l, 12000, 10000, "a")
	_ = Apply(l, plan, "a")

	if l.Clips[0].LanePositionMs != 0 || l.Clips[1].LanePositionMs != 15000 {
		t.Error("Apply mutated the input lane")
	}
}

func TestApply_ResultSorted(t *testing.T) {
	l := lane(clip("a", 0, 10000), clip("b", 15000, 5000))

	plan := ProposePlacement(l, 12000, 10000, "a")
	out := Apply(l, plan, "a")

	if out.Clips[0].ID != "a" || out.Clips[1].ID != "b" {
		t.Errorf("applied lane order = [%s, %s], want [a, b]", out.Clips[0].ID, out.Clips[1].ID)
	}
	if out.Clips[0].LanePositionMs != 12000 {
		t.Errorf("a position = %d, want 12000", out.Clips[0].LanePositionMs)
	}
	if out.Clips[1].LanePositionMs != 22000 {
		t.Errorf("b position = %d, want 22000", out.Clips[1].LanePositionMs)
	}
}

func TestNoOverlapInvariant_RandomizedPlacements(t *testing.T) {
	// Deterministic pseudo-random walk: every valid plan, once applied,
	// must leave the lane overlap-free.
	l := lane()
	seed := int64(0x5eed)
	next := func(mod int64) int64 {
		seed = (seed*6364136223846793005 + 1442695040888963407) & 0x7fffffff
		return seed % mod
	}

	for i := 0; i < 200; i++ {
		id := timeline.NewID()
		dur := timeline.Quantize(next(20000) + 100)
		pos := next(120000)

		plan := ProposePlacement(l, pos, dur, "")
		if !plan.Valid {
			plan = ShiftPlan{Valid: true, PositionMs: NextAvailablePosition(l)}
		}
		c := clip(id, plan.PositionMs, dur)
		l.Clips = append(l.Clips, c)
		l = Apply(l, plan, id)

		if err := l.Validate(); err != nil {
			t.Fatalf("iteration %d: invariant violated: %v", i, err)
		}
	}
}
