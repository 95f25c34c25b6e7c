package player

import (
	"context"
	"sync"
	"time"
)

// TickIntervalMs is how often a pipeline reports its playback position.
const TickIntervalMs = 250

// PipelineEvents carries a pipeline's asynchronous signals back into the
// player. All times are in the loaded source's own time base.
type PipelineEvents struct {
	OnReady func()
	OnTick  func(localMs int64)
	OnEnded func()
	OnError func(err error)
}

// Pipeline abstracts one media element: an asynchronous loader plus a
// playback head bounded to a [startMs, endMs) window of the source.
// The player owns two of these and swaps them for gapless transitions.
type Pipeline interface {
	// Load begins loading src and positions the head at startMs. The
	// pipeline signals OnReady when playback can begin, and OnEnded when
	// the head reaches endMs. A new Load supersedes any in-flight one.
	Load(ctx context.Context, src string, startMs, endMs int64)
	Play()
	Pause()
	SeekTo(localMs int64)
	PositionMs() int64
	SetEvents(ev PipelineEvents)
	Close()
}

// TickerPipeline simulates a media element on the wall clock. It loads
// instantly (optionally after a configurable latency) and advances its
// head on a ticker while playing. It backs headless operation and the
// player's tests; a browser front end supplies its own implementation.
type TickerPipeline struct {
	mu          sync.Mutex
	ev          PipelineEvents
	src         string
	startMs     int64
	endMs       int64
	posMs       int64
	ready       bool
	playing     bool
	loadLatency time.Duration
	generation  int
	ticker      *time.Ticker
	stopTick    chan struct{}
}

func NewTickerPipeline() *TickerPipeline {
	return &TickerPipeline{}
}

// SetLoadLatency delays readiness after Load, to exercise stall handling.
func (p *TickerPipeline) SetLoadLatency(d time.Duration) {
	p.mu.Lock()
	p.loadLatency = d
	p.mu.Unlock()
}

func (p *TickerPipeline) SetEvents(ev PipelineEvents) {
	p.mu.Lock()
	p.ev = ev
	p.mu.Unlock()
}

func (p *TickerPipeline) Load(ctx context.Context, src string, startMs, endMs int64) {
	p.mu.Lock()
	p.stopPlaybackLocked()
	p.generation++
	gen := p.generation
	p.src = src
	p.startMs = startMs
	p.endMs = endMs
	p.posMs = startMs
	p.ready = false
	latency := p.loadLatency
	p.mu.Unlock()

	go func() {
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-ctx.Done():
				return
			}
		}
		p.mu.Lock()
		if gen != p.generation {
			p.mu.Unlock()
			return
		}
		p.ready = true
		onReady := p.ev.OnReady
		p.mu.Unlock()
		if onReady != nil {
			onReady()
		}
	}()
}

func (p *TickerPipeline) Play() {
	p.mu.Lock()
	if !p.ready || p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.ticker = time.NewTicker(TickIntervalMs * time.Millisecond)
	p.stopTick = make(chan struct{})
	ticker, stop := p.ticker, p.stopTick
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.advance(TickIntervalMs)
			}
		}
	}()
}

func (p *TickerPipeline) advance(deltaMs int64) {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.posMs += deltaMs
	ended := p.posMs >= p.endMs
	if ended {
		p.posMs = p.endMs
		p.stopPlaybackLocked()
	}
	pos := p.posMs
	onTick, onEnded := p.ev.OnTick, p.ev.OnEnded
	p.mu.Unlock()

	if onTick != nil {
		onTick(pos)
	}
	if ended && onEnded != nil {
		onEnded()
	}
}

func (p *TickerPipeline) Pause() {
	p.mu.Lock()
	p.stopPlaybackLocked()
	p.mu.Unlock()
}

func (p *TickerPipeline) SeekTo(localMs int64) {
	p.mu.Lock()
	if localMs < p.startMs {
		localMs = p.startMs
	}
	if localMs > p.endMs {
		localMs = p.endMs
	}
	p.posMs = localMs
	p.mu.Unlock()
}

func (p *TickerPipeline) PositionMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.posMs
}

func (p *TickerPipeline) Close() {
	p.mu.Lock()
	p.generation++
	p.stopPlaybackLocked()
	p.mu.Unlock()
}

func (p *TickerPipeline) stopPlaybackLocked() {
	p.playing = false
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.stopTick != nil {
		close(p.stopTick)
		p.stopTick = nil
	}
}
