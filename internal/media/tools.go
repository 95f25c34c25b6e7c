package media

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// ToolStatus reports the availability of one external binary.
type ToolStatus struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Tools describes the media tooling found on this machine.
type Tools struct {
	FFProbe  ToolStatus `json:"ffprobe"`
	FFMpeg   ToolStatus `json:"ffmpeg"`
	ProbedAt time.Time  `json:"-"`
}

// CachedTools caches tool probes with a TTL so the status endpoint and
// ingest path do not spawn version checks on every call.
type CachedTools struct {
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Tools

	// overridable for tests
	probe func(ctx context.Context) *Tools
}

func NewCachedTools(logger *slog.Logger) *CachedTools {
	c := &CachedTools{
		ttl:    defaultCacheTTL,
		logger: logger,
	}
	c.probe = c.probeTools
	return c
}

// Get returns cached tool status if fresh, otherwise re-probes.
func (c *CachedTools) Get(ctx context.Context) *Tools {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.ProbedAt) < c.ttl {
		tools := c.cached
		c.mu.RUnlock()
		return tools
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

func (c *CachedTools) Peek() *Tools {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (c *CachedTools) Refresh(ctx context.Context) *Tools {
	c.mu.Lock()
	defer c.mu.Unlock()

	tools := c.probe(ctx)
	tools.ProbedAt = time.Now()
	c.cached = tools

	c.logger.Debug("media tools probed",
		"ffprobe", tools.FFProbe.Available,
		"ffmpeg", tools.FFMpeg.Available,
	)
	return tools
}

// Invalidate clears the cached status.
func (c *CachedTools) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func (c *CachedTools) probeTools(ctx context.Context) *Tools {
	return &Tools{
		FFProbe: probeBinary(ctx, "ffprobe"),
		FFMpeg:  probeBinary(ctx, "ffmpeg"),
	}
}

func probeBinary(ctx context.Context, name string) ToolStatus {
	path, err := exec.LookPath(name)
	if err != nil {
		return ToolStatus{Error: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return ToolStatus{Path: path, Error: err.Error()}
	}

	version := ""
	if line, _, ok := strings.Cut(string(out), "\n"); ok {
		version = strings.TrimSpace(line)
	}
	return ToolStatus{Available: true, Path: path, Version: version}
}
