// Package editor owns the authoritative in-memory timeline and the commit
// path for every mutation. State changes are computed synchronously against
// the current snapshot, applied atomically, and persisted asynchronously
// afterward; the model is never observably in an overlapping state, even
// when saves fail.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/filmroom/filmroom-agent/internal/dragging"
	"github.com/filmroom/filmroom-agent/internal/lanesync"
	"github.com/filmroom/filmroom-agent/internal/placement"
	"github.com/filmroom/filmroom-agent/internal/store"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

var (
	ErrClipNotFound   = errors.New("clip not found")
	ErrVideoNotFound  = errors.New("video not found")
	ErrLaneNotFound   = errors.New("lane not found")
	ErrMarkerNotFound = errors.New("marker not found")
)

// Listeners receives editor events. The tagging UI uses OnMarkerClick to
// keep annotation timestamps in sync; the payload is opaque to the agent.
type Listeners struct {
	OnTimelineChange     func()
	OnPersistenceFailure func(clipID string, err error)
	OnMarkerClick        func(m *timeline.Marker)
}

// PlaceResult reports a committed placement, including whether the
// append-at-lane-end fallback replaced an unsatisfiable target.
type PlaceResult struct {
	Clip            *timeline.Clip       `json:"clip"`
	FallbackApplied bool                 `json:"fallback_applied"`
	AffectedClips   []placement.ClipMove `json:"affected_clips,omitempty"`
}

type Service struct {
	mu     sync.Mutex
	tl     *timeline.Timeline
	repo   store.Repository
	saver  *Saver
	logger *slog.Logger
	listen Listeners

	// pending counts unconfirmed save ops per clip id. A clip stays
	// pending until every op queued for it has been confirmed.
	pendingMu sync.Mutex
	pending   map[string]int
}

func NewService(tl *timeline.Timeline, repo store.Repository, saver *Saver, logger *slog.Logger) *Service {
	if tl == nil {
		tl = &timeline.Timeline{}
	}
	s := &Service{
		tl:      tl,
		repo:    repo,
		saver:   saver,
		logger:  logger,
		pending: make(map[string]int),
	}
	if saver != nil {
		saver.onResult = s.onSaveResult
	}
	return s
}

func (s *Service) SetListeners(l Listeners) {
	s.mu.Lock()
	s.listen = l
	s.mu.Unlock()
}

// Timeline returns a deep snapshot of the current editor state.
func (s *Service) Timeline() *timeline.Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tl.Clone()
}

// PendingSaves returns the ids of clips with unconfirmed persistence.
func (s *Service) PendingSaves() []string {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}

// EnsureLane creates the lane if it does not exist yet. Lane rows are
// persisted synchronously; they are cheap and rare.
func (s *Service) EnsureLane(ctx context.Context, number int, label string) error {
	s.mu.Lock()
	lane := s.tl.Lane(number)
	if lane == nil {
		lane = &timeline.Lane{Number: number, Label: label}
		s.tl.Lanes = append(s.tl.Lanes, lane)
		sortLanes(s.tl.Lanes)
	} else if label != "" {
		lane.Label = label
	}
	label = lane.Label
	offset := lane.SyncOffsetMs
	s.mu.Unlock()

	return s.repo.UpsertLane(ctx, number, label, offset)
}

// AddClip creates a clip for the video at the lane's next available
// position. Zero srcEnd means the full source duration. Trim offsets snap
// to the grid so the duration always equals srcEnd minus srcStart.
func (s *Service) AddClip(ctx context.Context, videoID string, lane int, srcStartMs, srcEndMs int64) (*timeline.Clip, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}
	if srcEndMs == 0 {
		srcEndMs = video.DurationMs
	}
	srcStartMs = timeline.Quantize(srcStartMs)
	srcEndMs = timeline.Quantize(srcEndMs)
	if srcEndMs <= srcStartMs {
		return nil, fmt.Errorf("invalid trim range [%d, %d)", srcStartMs, srcEndMs)
	}

	s.mu.Lock()
	l := s.tl.Lane(lane)
	if l == nil {
		l = &timeline.Lane{Number: lane, Label: video.CameraLabel}
		s.tl.Lanes = append(s.tl.Lanes, l)
		sortLanes(s.tl.Lanes)
	}

	clip := &timeline.Clip{
		ID:                  timeline.NewID(),
		VideoID:             videoID,
		CameraLane:          lane,
		LanePositionMs:      placement.NextAvailablePosition(l),
		DurationMs:          srcEndMs - srcStartMs,
		SourceStartOffsetMs: srcStartMs,
		SourceEndOffsetMs:   srcEndMs,
		VideoName:           video.Name,
		CreatedAt:           time.Now(),
	}
	l.Clips = append(l.Clips, clip)
	l.SortClips()
	saved := *clip
	s.mu.Unlock()

	s.markPending(clip.ID)
	s.saver.Enqueue(Op{Kind: store.SaveOpCreate, Clip: &saved})
	s.notifyChange()
	return clip, nil
}

// PlaceClip creates a clip at a desired position, resolving conflicts
// through the positioning engine. An unsatisfiable target falls back to
// the lane end; the caller learns this through FallbackApplied so the UI
// can message the coach.
func (s *Service) PlaceClip(ctx context.Context, videoID string, lane int, desiredPositionMs, srcStartMs, srcEndMs int64) (*PlaceResult, error) {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, ErrVideoNotFound
	}
	if srcEndMs == 0 {
		srcEndMs = video.DurationMs
	}
	srcStartMs = timeline.Quantize(srcStartMs)
	srcEndMs = timeline.Quantize(srcEndMs)
	if srcEndMs <= srcStartMs {
		return nil, fmt.Errorf("invalid trim range [%d, %d)", srcStartMs, srcEndMs)
	}
	dur := srcEndMs - srcStartMs

	s.mu.Lock()
	l := s.tl.Lane(lane)
	if l == nil {
		l = &timeline.Lane{Number: lane, Label: video.CameraLabel}
		s.tl.Lanes = append(s.tl.Lanes, l)
		sortLanes(s.tl.Lanes)
	}

	plan := placement.ProposePlacement(l, desiredPositionMs, dur, "")
	fallback := !plan.Valid
	if fallback {
		plan = placement.ShiftPlan{Valid: true, PositionMs: placement.NextAvailablePosition(l)}
	}

	clip := &timeline.Clip{
		ID:                  timeline.NewID(),
		VideoID:             videoID,
		CameraLane:          lane,
		LanePositionMs:      plan.PositionMs,
		DurationMs:          dur,
		SourceStartOffsetMs: srcStartMs,
		SourceEndOffsetMs:   srcEndMs,
		VideoName:           video.Name,
		CreatedAt:           time.Now(),
	}
	l.Clips = append(l.Clips, clip)
	s.replaceLaneLocked(placement.Apply(l, plan, clip.ID))
	ops := s.shiftOpsLocked(lane, plan.AffectedClips)
	saved := *clip
	s.mu.Unlock()

	// Shifted neighbors persist before the placed clip itself, so a
	// concurrent reader never sees an overlapping layout.
	for _, op := range ops {
		s.markPending(op.ClipID)
	}
	s.markPending(saved.ID)
	s.saver.Enqueue(append(ops, Op{Kind: store.SaveOpCreate, Clip: &saved})...)
	s.notifyChange()

	return &PlaceResult{Clip: clip, FallbackApplied: fallback, AffectedClips: plan.AffectedClips}, nil
}

// MoveClip is the drag commit path. It satisfies dragging.Committer.
func (s *Service) MoveClip(ctx context.Context, clipID string, desiredPositionMs int64) (dragging.CommitResult, error) {
	s.mu.Lock()
	l, clip := s.tl.FindClip(clipID)
	if clip == nil {
		s.mu.Unlock()
		return dragging.CommitResult{}, ErrClipNotFound
	}

	plan := placement.ProposePlacement(l, desiredPositionMs, clip.DurationMs, clipID)
	fallback := !plan.Valid
	if fallback {
		plan = placement.ShiftPlan{Valid: true, PositionMs: lastEndExcluding(l, clipID)}
	}

	s.replaceLaneLocked(placement.Apply(l, plan, clipID))
	ops := s.shiftOpsLocked(l.Number, plan.AffectedClips)
	lane := l.Number
	s.mu.Unlock()

	for _, op := range ops {
		s.markPending(op.ClipID)
	}
	s.markPending(clipID)
	s.saver.Enqueue(append(ops, Op{
		Kind:       store.SaveOpMove,
		ClipID:     clipID,
		Lane:       lane,
		PositionMs: plan.PositionMs,
	})...)
	s.notifyChange()

	return dragging.CommitResult{
		Committed:       true,
		PositionMs:      plan.PositionMs,
		FallbackApplied: fallback,
		AffectedClips:   plan.AffectedClips,
	}, nil
}

// RemoveClip deletes the clip without disturbing any other positions.
func (s *Service) RemoveClip(ctx context.Context, clipID string) error {
	s.mu.Lock()
	l, clip := s.tl.FindClip(clipID)
	if clip == nil {
		s.mu.Unlock()
		return ErrClipNotFound
	}
	kept := l.Clips[:0]
	for _, c := range l.Clips {
		if c.ID != clipID {
			kept = append(kept, c)
		}
	}
	l.Clips = kept
	lane := l.Number
	s.mu.Unlock()

	s.markPending(clipID)
	s.saver.Enqueue(Op{Kind: store.SaveOpRemove, ClipID: clipID, Lane: lane})
	s.notifyChange()
	return nil
}

// ApplySyncOffset shifts every clip in the lane by offsetMs to align it
// with another camera angle. Without force, a conflicting shift returns
// the lanesync.ConflictError for the caller to surface; with force the
// shift is re-resolved clip by clip and always commits.
func (s *Service) ApplySyncOffset(ctx context.Context, laneNumber int, offsetMs int64, force bool) ([]placement.ClipMove, error) {
	// Snap before planning so the committed positions and the recorded
	// lane offset agree on the same grid-aligned delta.
	offsetMs = timeline.QuantizeDelta(offsetMs)

	s.mu.Lock()
	l := s.tl.Lane(laneNumber)
	if l == nil {
		s.mu.Unlock()
		return nil, ErrLaneNotFound
	}

	plan, err := lanesync.ProposeLaneShift(l, offsetMs)
	if err != nil {
		if !force {
			s.mu.Unlock()
			return nil, err
		}
		plan = lanesync.ForceLaneShift(l, offsetMs)
	}

	shifted := placement.Apply(l, placement.ShiftPlan{Valid: true, AffectedClips: plan.AffectedClips}, "")
	shifted.SyncOffsetMs = l.SyncOffsetMs + offsetMs
	s.replaceLaneLocked(shifted)
	ops := s.shiftOpsLocked(laneNumber, plan.AffectedClips)
	label := shifted.Label
	newOffset := shifted.SyncOffsetMs
	s.mu.Unlock()

	// All clip moves of a sync are committed as one batch.
	for _, op := range ops {
		s.markPending(op.ClipID)
	}
	s.saver.Enqueue(ops...)
	if err := s.repo.UpsertLane(ctx, laneNumber, label, newOffset); err != nil {
		s.logger.Warn("failed to persist lane sync offset", "lane", laneNumber, "error", err)
	}
	s.notifyChange()
	return plan.AffectedClips, nil
}

// AddMarker stores an opaque annotation marker. Markers persist
// synchronously; they are outside the clip save pipeline.
func (s *Service) AddMarker(ctx context.Context, m *timeline.Marker) error {
	if m.ID == "" {
		m.ID = timeline.NewID()
	}
	s.mu.Lock()
	mm := *m
	s.tl.Markers = append(s.tl.Markers, &mm)
	s.mu.Unlock()
	return s.repo.UpsertMarker(ctx, m)
}

// MoveMarker satisfies the marker arm of dragging.Committer. Markers
// bypass collision checks; any number may share a moment.
func (s *Service) MoveMarker(ctx context.Context, markerID string, timeMs int64) error {
	s.mu.Lock()
	m := s.tl.FindMarker(markerID)
	if m == nil {
		s.mu.Unlock()
		return ErrMarkerNotFound
	}
	if timeMs < 0 {
		timeMs = 0
	}
	m.TimeMs = timeMs
	s.mu.Unlock()
	return s.repo.UpdateMarkerTime(ctx, markerID, timeMs)
}

// MarkerClicked forwards a marker activation to the tagging UI listener.
func (s *Service) MarkerClicked(markerID string) {
	s.mu.Lock()
	m := s.tl.FindMarker(markerID)
	var cb func(*timeline.Marker)
	if m != nil {
		mm := *m
		m = &mm
		cb = s.listen.OnMarkerClick
	}
	s.mu.Unlock()

	if m != nil && cb != nil {
		cb(m)
	}
}

// SetPlayhead records the shared playhead position.
func (s *Service) SetPlayhead(ms int64) {
	s.mu.Lock()
	if ms < 0 {
		ms = 0
	}
	s.tl.PlayheadPositionMs = ms
	s.mu.Unlock()
}

// LaneClips returns the lane's clips in position order, for sequence
// building and export.
func (s *Service) LaneClips(laneNumber int) ([]*timeline.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.tl.Lane(laneNumber)
	if l == nil {
		return nil, ErrLaneNotFound
	}
	clips := make([]*timeline.Clip, len(l.Clips))
	for i, c := range l.Clips {
		cc := *c
		clips[i] = &cc
	}
	return clips, nil
}

// Clips resolves an ordered id list into clip snapshots, for user-defined
// playback sequences.
func (s *Service) Clips(ids []string) ([]*timeline.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clips := make([]*timeline.Clip, 0, len(ids))
	for _, id := range ids {
		_, c := s.tl.FindClip(id)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", ErrClipNotFound, id)
		}
		cc := *c
		clips = append(clips, &cc)
	}
	return clips, nil
}

func (s *Service) replaceLaneLocked(l *timeline.Lane) {
	for i, existing := range s.tl.Lanes {
		if existing.Number == l.Number {
			s.tl.Lanes[i] = l
			return
		}
	}
	s.tl.Lanes = append(s.tl.Lanes, l)
	sortLanes(s.tl.Lanes)
}

func (s *Service) shiftOpsLocked(lane int, moves []placement.ClipMove) []Op {
	ops := make([]Op, 0, len(moves))
	for _, m := range moves {
		ops = append(ops, Op{
			Kind:       store.SaveOpMove,
			ClipID:     m.ClipID,
			Lane:       lane,
			PositionMs: m.NewPositionMs,
		})
	}
	return ops
}

func (s *Service) markPending(clipID string) {
	s.pendingMu.Lock()
	s.pending[clipID]++
	s.pendingMu.Unlock()
}

func (s *Service) onSaveResult(op Op, err error) {
	s.pendingMu.Lock()
	if n := s.pending[op.clipID()]; n <= 1 {
		delete(s.pending, op.clipID())
	} else {
		s.pending[op.clipID()] = n - 1
	}
	s.pendingMu.Unlock()

	if err == nil {
		return
	}
	s.mu.Lock()
	cb := s.listen.OnPersistenceFailure
	s.mu.Unlock()
	if cb != nil {
		cb(op.clipID(), err)
	}
}

func (s *Service) notifyChange() {
	s.mu.Lock()
	cb := s.listen.OnTimelineChange
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func lastEndExcluding(l *timeline.Lane, clipID string) int64 {
	var max int64
	for _, c := range l.Clips {
		if c.ID == clipID {
			continue
		}
		if end := c.EndMs(); end > max {
			max = end
		}
	}
	return max
}

func sortLanes(lanes []*timeline.Lane) {
	for i := 1; i < len(lanes); i++ {
		for j := i; j > 0 && lanes[j-1].Number > lanes[j].Number; j-- {
			lanes[j-1], lanes[j] = lanes[j], lanes[j-1]
		}
	}
}
