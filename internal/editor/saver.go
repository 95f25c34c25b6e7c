package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/filmroom/filmroom-agent/internal/remote"
	"github.com/filmroom/filmroom-agent/internal/store"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

// Op is one queued persistence call. Shift moves caused by a placement
// are enqueued before the placed clip's own op, and the queue drains
// strictly in order, so the persisted layout is never overlapping.
type Op struct {
	Kind       string // store.SaveOpCreate, SaveOpMove, SaveOpRemove
	Clip       *timeline.Clip
	ClipID     string
	Lane       int
	PositionMs int64
}

func (o Op) clipID() string {
	if o.Clip != nil {
		return o.Clip.ID
	}
	return o.ClipID
}

// Saver drains the save queue sequentially: local row first, then the
// remote call. A retryable remote failure is retried a few times before
// the op lands in the failed_saves journal; the in-memory timeline keeps
// the committed position either way.
type Saver struct {
	repo    store.Repository
	remote  remote.Client
	logger  *slog.Logger
	running atomic.Bool
	paused  atomic.Bool

	pollInterval time.Duration
	maxAttempts  int
	retryDelay   time.Duration

	mu    sync.Mutex
	queue []Op

	// set by the owning Service
	onResult func(op Op, err error)
}

func NewSaver(repo store.Repository, rc remote.Client, logger *slog.Logger) *Saver {
	return &Saver{
		repo:         repo,
		remote:       rc,
		logger:       logger,
		pollInterval: 500 * time.Millisecond,
		maxAttempts:  3,
		retryDelay:   time.Second,
	}
}

func (s *Saver) Enqueue(ops ...Op) {
	s.mu.Lock()
	s.queue = append(s.queue, ops...)
	s.mu.Unlock()
}

func (s *Saver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Saver) Start(ctx context.Context) {
	if s.running.Swap(true) {
		return
	}

	s.logger.Info("saver started")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("saver stopping")
			s.running.Store(false)
			return
		case <-ticker.C:
			if !s.paused.Load() {
				s.Drain(ctx)
			}
		}
	}
}

func (s *Saver) Pause() {
	s.paused.Store(true)
	s.logger.Info("saver paused")
}

func (s *Saver) Resume() {
	s.paused.Store(false)
	s.logger.Info("saver resumed")
}

func (s *Saver) IsPaused() bool {
	return s.paused.Load()
}

func (s *Saver) IsRunning() bool {
	return s.running.Load()
}

// Drain processes every currently queued op in FIFO order. It is called
// by the poll loop and directly by tests.
func (s *Saver) Drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		op := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		err := s.processOp(ctx, op)
		if err != nil {
			s.journalFailure(ctx, op, err)
		}
		if s.onResult != nil {
			s.onResult(op, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Saver) processOp(ctx context.Context, op Op) error {
	if err := s.persistLocal(ctx, op); err != nil {
		return fmt.Errorf("local save: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.persistRemote(ctx, op)
		if lastErr == nil {
			return nil
		}

		var saveErr *remote.SaveError
		if errors.As(lastErr, &saveErr) && !saveErr.IsRetryable() {
			break
		}
		s.logger.Warn("clip save attempt failed",
			"clip_id", op.clipID(), "op", op.Kind, "attempt", attempt, "error", lastErr)

		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(s.retryDelay):
			}
		}
	}
	return lastErr
}

func (s *Saver) persistLocal(ctx context.Context, op Op) error {
	switch op.Kind {
	case store.SaveOpCreate:
		return s.repo.UpsertClip(ctx, op.Clip)
	case store.SaveOpMove:
		return s.repo.UpdateClipPosition(ctx, op.ClipID, op.Lane, op.PositionMs)
	case store.SaveOpRemove:
		return s.repo.DeleteClip(ctx, op.ClipID)
	default:
		return fmt.Errorf("unknown save op %q", op.Kind)
	}
}

func (s *Saver) persistRemote(ctx context.Context, op Op) error {
	switch op.Kind {
	case store.SaveOpCreate:
		return s.remote.CreateClip(ctx, op.Clip)
	case store.SaveOpMove:
		return s.remote.UpdateClipPosition(ctx, op.ClipID, op.Lane, op.PositionMs)
	case store.SaveOpRemove:
		return s.remote.RemoveClip(ctx, op.ClipID)
	default:
		return fmt.Errorf("unknown save op %q", op.Kind)
	}
}

func (s *Saver) journalFailure(ctx context.Context, op Op, saveErr error) {
	s.logger.Error("clip save failed permanently",
		"clip_id", op.clipID(), "op", op.Kind, "error", saveErr)

	detail := ""
	if op.Kind == store.SaveOpMove {
		detail = fmt.Sprintf("position_ms=%d", op.PositionMs)
	}
	err := s.repo.RecordFailedSave(ctx, &store.FailedSave{
		ClipID:    op.clipID(),
		Op:        op.Kind,
		Detail:    detail,
		Error:     saveErr.Error(),
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.logger.Error("failed to journal save failure", "clip_id", op.clipID(), "error", err)
	}
}
