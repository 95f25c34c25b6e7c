// Package player drives gapless, seekable playback of an ordered set of
// clips over a synthetic virtual time axis. Two media pipelines are held
// at all times: the active one plays the current segment while the next
// segment's source loads into the preload one; on end-of-media the two
// swap without a visible gap. A swap before the preload is ready is a
// recoverable stall, not an error.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStalled State = "stalled"
)

var (
	ErrNoSequence     = errors.New("no sequence loaded")
	ErrSeekOutOfRange = errors.New("seek target outside virtual timeline")
)

// MediaLoadError reports a segment whose source failed to load or decode.
type MediaLoadError struct {
	SegmentIndex int
	VideoID      string
	Err          error
}

func (e *MediaLoadError) Error() string {
	return fmt.Sprintf("segment %d (video %s) failed to load: %v", e.SegmentIndex, e.VideoID, e.Err)
}

func (e *MediaLoadError) Unwrap() error { return e.Err }

// SourceResolver maps a video id to a playable source URL.
type SourceResolver func(videoID string) (string, error)

// Listeners receives playback events. Callbacks run off the player's
// lock and must not block.
type Listeners struct {
	OnTimeUpdate      func(virtualMs, totalMs int64)
	OnPlayStateChange func(playing bool)
	OnStall           func(stalled bool)
	OnSegmentChange   func(index int)
	OnError           func(err error)
}

type Player struct {
	mu       sync.Mutex
	logger   *slog.Logger
	resolve  SourceResolver
	active   Pipeline
	preload  Pipeline
	seq      *Sequence
	idx      int
	state    State
	stalled  bool
	listen   Listeners
	loadCtx  context.Context
	loadStop context.CancelFunc

	// preload bookkeeping; a generation guards stale ready signals from
	// superseded loads.
	preloadIdx   int
	preloadReady bool
	generation   int

	// SkipUnplayable selects the recovery policy for MediaLoadError:
	// skip the segment and continue, or halt playback.
	SkipUnplayable bool
}

// New creates a player over a pair of pipelines. The same pipeline values
// are reused across sequences; Load rebinds them.
func New(active, preload Pipeline, resolve SourceResolver, logger *slog.Logger) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		logger:     logger,
		resolve:    resolve,
		active:     active,
		preload:    preload,
		state:      StateStopped,
		idx:        -1,
		preloadIdx: -1,
		loadCtx:    ctx,
		loadStop:   cancel,
	}
}

func (p *Player) SetListeners(l Listeners) {
	p.mu.Lock()
	p.listen = l
	p.mu.Unlock()
}

// Load builds the virtual sequence and primes both pipelines.
func (p *Player) Load(seq *Sequence) error {
	if seq == nil || len(seq.Segments) == 0 {
		return ErrNoSequence
	}

	p.mu.Lock()
	p.seq = seq
	p.idx = 0
	p.state = StatePaused
	p.setStalledLocked(false)
	p.generation++
	p.rebindLocked()
	err := p.loadSegmentLocked(p.active, 0)
	p.startPreloadLocked(1)
	p.mu.Unlock()
	return err
}

// Sequence returns the loaded sequence, or nil.
func (p *Player) Sequence() *Sequence {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SegmentIndex returns the active segment index, or -1 when stopped.
func (p *Player) SegmentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idx
}

func (p *Player) Play() error {
	p.mu.Lock()
	if p.seq == nil {
		p.mu.Unlock()
		return ErrNoSequence
	}
	if p.state == StatePlaying || p.state == StateStalled {
		p.mu.Unlock()
		return nil
	}
	p.state = StatePlaying
	p.active.Play()
	notify := p.listen.OnPlayStateChange
	p.mu.Unlock()

	if notify != nil {
		notify(true)
	}
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	if p.state != StatePlaying && p.state != StateStalled {
		p.mu.Unlock()
		return
	}
	p.state = StatePaused
	p.setStalledLocked(false)
	p.active.Pause()
	notify := p.listen.OnPlayStateChange
	p.mu.Unlock()

	if notify != nil {
		notify(false)
	}
}

// Stop halts playback and rewinds to the start of the virtual axis.
func (p *Player) Stop() {
	p.mu.Lock()
	wasPlaying := p.state == StatePlaying || p.state == StateStalled
	p.state = StateStopped
	p.setStalledLocked(false)
	p.active.Pause()
	if p.seq != nil {
		p.idx = 0
	}
	notify := p.listen.OnPlayStateChange
	p.mu.Unlock()

	if wasPlaying && notify != nil {
		notify(false)
	}
}

// VirtualTimeMs reports the playhead on the virtual axis.
func (p *Player) VirtualTimeMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seq == nil || p.idx < 0 || p.idx >= len(p.seq.Segments) {
		return 0
	}
	return p.seq.Segments[p.idx].VirtualTimeMs(p.active.PositionMs())
}

// Seek positions the playhead at virtualMs. A new seek supersedes any
// in-flight one; seeking into another segment reloads the active pipeline
// and restarts the preload chain behind it.
func (p *Player) Seek(virtualMs int64) error {
	p.mu.Lock()
	if p.seq == nil {
		p.mu.Unlock()
		return ErrNoSequence
	}
	target := p.seq.SegmentAt(virtualMs)
	if target < 0 {
		p.mu.Unlock()
		return ErrSeekOutOfRange
	}

	seg := p.seq.Segments[target]
	local := seg.LocalTimeMs(virtualMs)
	// A stalled player is still playing as far as the coach is concerned;
	// seeking away from the stall must resume, not leave it paused.
	wasPlaying := p.state == StatePlaying || p.state == StateStalled

	if target == p.idx {
		p.active.SeekTo(local)
		if wasPlaying && p.state != StatePlaying {
			p.state = StatePlaying
			p.setStalledLocked(false)
			p.active.Play()
		}
		p.mu.Unlock()
		return nil
	}

	p.generation++
	p.idx = target
	p.setStalledLocked(false)
	if err := p.loadSegmentLocked(p.active, target); err != nil {
		p.mu.Unlock()
		return err
	}
	p.active.SeekTo(local)
	if wasPlaying {
		p.state = StatePlaying
		p.active.Play()
	}
	p.startPreloadLocked(target + 1)
	segChanged := p.listen.OnSegmentChange
	p.mu.Unlock()

	if segChanged != nil {
		segChanged(target)
	}
	return nil
}

func (p *Player) Close() {
	p.loadStop()
	p.mu.Lock()
	p.active.Close()
	p.preload.Close()
	p.state = StateStopped
	p.mu.Unlock()
}

// rebindLocked points the pipelines' event streams at the player. Events
// carry the generation so signals from superseded loads are dropped.
func (p *Player) rebindLocked() {
	gen := p.generation
	p.active.SetEvents(PipelineEvents{
		OnTick:  func(localMs int64) { p.onActiveTick(gen, localMs) },
		OnEnded: func() { p.onActiveEnded(gen) },
		OnError: func(err error) { p.onPipelineError(gen, true, err) },
	})
	p.preload.SetEvents(PipelineEvents{
		OnReady: func() { p.onPreloadReady(gen) },
		OnError: func(err error) { p.onPipelineError(gen, false, err) },
	})
}

func (p *Player) loadSegmentLocked(pipe Pipeline, idx int) error {
	seg := p.seq.Segments[idx]
	src, err := p.resolve(seg.Clip.VideoID)
	if err != nil {
		seg.Unplayable = true
		return &MediaLoadError{SegmentIndex: idx, VideoID: seg.Clip.VideoID, Err: err}
	}
	pipe.Load(p.loadCtx, src, seg.Clip.SourceStartOffsetMs, seg.Clip.SourceEndOffsetMs)
	return nil
}

func (p *Player) startPreloadLocked(idx int) {
	p.preloadReady = false
	p.preloadIdx = -1
	for idx < len(p.seq.Segments) {
		if p.seq.Segments[idx].Unplayable {
			idx++
			continue
		}
		err := p.loadSegmentLocked(p.preload, idx)
		if err == nil {
			p.preloadIdx = idx
			return
		}
		// loadSegmentLocked marked the segment unplayable. Surface the
		// failure and keep walking so one dead source cannot stall the
		// preload chain.
		if p.logger != nil {
			p.logger.Warn("preload failed", "segment", idx, "error", err)
		}
		if onErr := p.listen.OnError; onErr != nil {
			go onErr(err)
		}
		idx++
	}
}

func (p *Player) onActiveTick(gen int, localMs int64) {
	p.mu.Lock()
	if gen != p.generation || p.seq == nil || p.idx < 0 {
		p.mu.Unlock()
		return
	}
	seg := p.seq.Segments[p.idx]
	virtual := seg.VirtualTimeMs(localMs)
	total := p.seq.TotalDurationMs()
	update := p.listen.OnTimeUpdate
	p.mu.Unlock()

	if update != nil {
		update(virtual, total)
	}
}

// onActiveEnded performs the gapless swap: the preloaded pipeline becomes
// active if it is ready, otherwise playback stalls until it is.
func (p *Player) onActiveEnded(gen int) {
	p.mu.Lock()
	if gen != p.generation || p.seq == nil {
		p.mu.Unlock()
		return
	}

	next := p.nextPlayableLocked(p.idx + 1)
	if next < 0 {
		// End of the last segment: stop, do not loop.
		p.state = StateStopped
		notifyState := p.listen.OnPlayStateChange
		update := p.listen.OnTimeUpdate
		total := p.seq.TotalDurationMs()
		p.mu.Unlock()

		if update != nil {
			update(total, total)
		}
		if notifyState != nil {
			notifyState(false)
		}
		return
	}

	if p.preloadIdx == next && p.preloadReady {
		p.swapLocked(next)
		p.mu.Unlock()
		return
	}

	// Preload not there yet: recoverable stall until OnReady arrives.
	if p.preloadIdx != next {
		p.startPreloadLocked(next)
	}
	if p.preloadIdx < 0 {
		// The preload walk exhausted the sequence: every remaining
		// segment is dead. That is the end of playable media, not a
		// stall to wait out.
		p.state = StateStopped
		p.setStalledLocked(false)
		notifyState := p.listen.OnPlayStateChange
		p.mu.Unlock()
		if notifyState != nil {
			notifyState(false)
		}
		return
	}
	p.state = StateStalled
	p.setStalledLocked(true)
	p.mu.Unlock()
}

func (p *Player) onPreloadReady(gen int) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	p.preloadReady = true
	// preloadIdx can be -1 when a ready signal outraces a failed restart
	// of the preload chain; swapping to it would corrupt the playhead.
	if p.state != StateStalled || p.preloadIdx < 0 {
		p.mu.Unlock()
		return
	}
	next := p.preloadIdx
	p.swapLocked(next)
	p.mu.Unlock()
}

// swapLocked promotes the preload pipeline, resumes playback, and begins
// preloading the following segment into the demoted pipeline.
func (p *Player) swapLocked(next int) {
	p.active, p.preload = p.preload, p.active
	p.idx = next
	p.state = StatePlaying
	p.setStalledLocked(false)
	p.rebindLocked()
	p.active.Play()
	p.startPreloadLocked(next + 1)

	segChanged := p.listen.OnSegmentChange
	if segChanged != nil {
		go segChanged(next)
	}
}

func (p *Player) onPipelineError(gen int, active bool, err error) {
	p.mu.Lock()
	if gen != p.generation || p.seq == nil {
		p.mu.Unlock()
		return
	}
	idx := p.preloadIdx
	if active {
		idx = p.idx
	}
	if idx >= 0 && idx < len(p.seq.Segments) {
		p.seq.Segments[idx].Unplayable = true
	}
	loadErr := &MediaLoadError{SegmentIndex: idx, Err: err}
	if idx >= 0 && idx < len(p.seq.Segments) {
		loadErr.VideoID = p.seq.Segments[idx].Clip.VideoID
	}
	onErr := p.listen.OnError
	if p.logger != nil {
		p.logger.Warn("media load failure", "segment", idx, "error", err)
	}

	if !p.SkipUnplayable {
		p.state = StateStopped
		p.active.Pause()
		notify := p.listen.OnPlayStateChange
		p.mu.Unlock()
		if onErr != nil {
			onErr(loadErr)
		}
		if notify != nil {
			notify(false)
		}
		return
	}

	if active {
		// Skip forward past the dead segment.
		next := p.nextPlayableLocked(idx + 1)
		if next < 0 {
			p.state = StateStopped
			p.mu.Unlock()
			if onErr != nil {
				onErr(loadErr)
			}
			return
		}
		p.generation++
		p.idx = next
		p.rebindLocked()
		p.loadSegmentLocked(p.active, next)
		p.active.Play()
		p.startPreloadLocked(next + 1)
	} else {
		p.startPreloadLocked(idx + 1)
	}
	p.mu.Unlock()

	if onErr != nil {
		onErr(loadErr)
	}
}

func (p *Player) nextPlayableLocked(from int) int {
	for i := from; i < len(p.seq.Segments); i++ {
		if !p.seq.Segments[i].Unplayable {
			return i
		}
	}
	return -1
}

func (p *Player) setStalledLocked(stalled bool) {
	if p.stalled == stalled {
		return
	}
	p.stalled = stalled
	if notify := p.listen.OnStall; notify != nil {
		go notify(stalled)
	}
}
