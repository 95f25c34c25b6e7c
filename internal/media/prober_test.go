package media

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "3600.521000"},
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080}
		]
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.DurationMs != 3600521 {
		t.Errorf("duration = %d, want 3600521", info.DurationMs)
	}
	if info.VideoCodec != "h264" || info.Width != 1920 || info.Height != 1080 {
		t.Errorf("video stream = %+v", info)
	}
}

func TestParseProbeOutput_StreamDurationFallback(t *testing.T) {
	data := []byte(`{
		"format": {"format_name": "matroska,webm"},
		"streams": [{"codec_type": "video", "codec_name": "vp9", "duration": "12.5"}]
	}`)

	info, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.DurationMs != 12500 {
		t.Errorf("duration = %d, want 12500", info.DurationMs)
	}
}

func TestParseProbeOutput_NoDuration(t *testing.T) {
	if _, err := parseProbeOutput([]byte(`{"format": {}, "streams": []}`)); err == nil {
		t.Error("expected error for report without duration")
	}
}

func TestParseProbeOutput_Garbage(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Error("expected error for unparseable output")
	}
}

func TestParseDurationMs(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0.5", 500},
		{"3600.521", 3600521},
		{"-1", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		if got := parseDurationMs(tt.in); got != tt.want {
			t.Errorf("parseDurationMs(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCachedTools_CachesWithinTTL(t *testing.T) {
	probes := 0
	c := NewCachedTools(testLogger())
	c.probe = func(ctx context.Context) *Tools {
		probes++
		return &Tools{FFProbe: ToolStatus{Available: true}}
	}

	ctx := context.Background()
	c.Get(ctx)
	c.Get(ctx)
	if probes != 1 {
		t.Errorf("probes = %d, want 1 (second Get should hit cache)", probes)
	}

	c.Invalidate()
	c.Get(ctx)
	if probes != 2 {
		t.Errorf("probes = %d, want 2 after Invalidate", probes)
	}
}

func TestCachedTools_ExpiredCacheReprobes(t *testing.T) {
	probes := 0
	c := NewCachedTools(testLogger())
	c.ttl = time.Millisecond
	c.probe = func(ctx context.Context) *Tools {
		probes++
		return &Tools{}
	}

	ctx := context.Background()
	c.Get(ctx)
	time.Sleep(5 * time.Millisecond)
	c.Get(ctx)
	if probes != 2 {
		t.Errorf("probes = %d, want 2 after TTL expiry", probes)
	}
}

func TestStubProber(t *testing.T) {
	p := &StubProber{DurationMs: 1000}
	info, err := p.Probe(context.Background(), "/nonexistent.mp4")
	if err != nil {
		t.Fatalf("StubProber.Probe() error = %v", err)
	}
	if info.DurationMs != 1000 {
		t.Errorf("duration = %d, want 1000", info.DurationMs)
	}
}
