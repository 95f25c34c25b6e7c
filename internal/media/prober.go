// Package media probes local video files with ffprobe. Uploads arrive
// with unknown durations often enough that the agent verifies them
// locally before clips are cut from the source.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

// MediaInfo is the subset of ffprobe output the agent cares about.
type MediaInfo struct {
	DurationMs int64  `json:"duration_ms"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	Container  string `json:"container,omitempty"`
}

// Prober extracts media metadata from a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (*MediaInfo, error)
}

// Config holds the prober's configuration.
type Config struct {
	FFProbePath  string        // path to ffprobe binary; empty = $PATH lookup
	ProbeTimeout time.Duration // timeout per probe
	Logger       *slog.Logger
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		FFProbePath:  "ffprobe",
		ProbeTimeout: 30 * time.Second,
		Logger:       logger,
	}
}

// FFProbeProber is the production implementation of Prober. It shells out
// to ffprobe and parses its JSON report.
type FFProbeProber struct {
	cfg Config
}

func NewProber(cfg Config) *FFProbeProber {
	if cfg.FFProbePath == "" {
		cfg.FFProbePath = "ffprobe"
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	return &FFProbeProber{cfg: cfg}
}

func (p *FFProbeProber) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.FFProbePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, stderrTail(stderr.Bytes()))
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	p.cfg.Logger.Debug("probed media file",
		"duration_ms", info.DurationMs,
		"codec", info.VideoCodec,
		"took", time.Since(start),
	)
	return info, nil
}

type probeReport struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// parseProbeOutput extracts duration and video stream details from an
// ffprobe JSON report. Container duration wins; the video stream's own
// duration is the fallback for containers that omit it.
func parseProbeOutput(data []byte) (*MediaInfo, error) {
	var report probeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}

	info := &MediaInfo{Container: report.Format.FormatName}
	info.DurationMs = parseDurationMs(report.Format.Duration)

	for _, s := range report.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.VideoCodec = s.CodecName
		info.Width = s.Width
		info.Height = s.Height
		if info.DurationMs == 0 {
			info.DurationMs = parseDurationMs(s.Duration)
		}
		break
	}

	if info.DurationMs == 0 {
		return nil, fmt.Errorf("ffprobe reported no duration")
	}
	return info, nil
}

// parseDurationMs converts ffprobe's fractional-seconds string to
// milliseconds, truncating sub-millisecond precision.
func parseDurationMs(s string) int64 {
	if s == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return int64(seconds * 1000)
}

func stderrTail(b []byte) string {
	if len(b) > maxStderrBytes {
		b = b[len(b)-maxStderrBytes:]
	}
	return string(bytes.TrimSpace(b))
}

// StubProber reports a fixed duration for every file. Used when ffprobe
// is not installed; durations then come solely from the ingest payload.
type StubProber struct {
	DurationMs int64
}

func (p *StubProber) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	return &MediaInfo{DurationMs: p.DurationMs}, nil
}
