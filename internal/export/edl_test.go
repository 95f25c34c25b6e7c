package export

import (
	"strings"
	"testing"

	"github.com/filmroom/filmroom-agent/internal/player"
	"github.com/filmroom/filmroom-agent/internal/store"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

func TestGenerateEDL_SingleClip(t *testing.T) {
	clips := []ResolvedClip{{
		ClipName:    "Intro",
		MediaPath:   "/media/intro.mp4",
		SourceInMs:  0,
		SourceOutMs: 2000,
		RecordInMs:  0,
		RecordOutMs: 2000,
	}}

	edl := GenerateEDL(clips, "Project One", 30.0)

	if !strings.Contains(edl, "TITLE: Project One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  Intro") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/intro.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_TrimmedClipKeepsSourceOffsets(t *testing.T) {
	// A clip trimmed to [3000, 8000) of its source, playing at virtual
	// [1000, 6000): source and record timecodes must differ.
	clips := []ResolvedClip{{
		ClipName:    "Second half",
		MediaPath:   "/media/cam2.mp4",
		SourceInMs:  3000,
		SourceOutMs: 8000,
		RecordInMs:  1000,
		RecordOutMs: 6000,
	}}

	edl := GenerateEDL(clips, "Trim", 30.0)

	if !strings.Contains(edl, "001  AX       V     C        00:00:03:00 00:00:08:00 00:00:01:00 00:00:06:00") {
		t.Fatalf("event line mismatch: %q", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	clips := []ResolvedClip{{ClipName: "Clip", MediaPath: "/x.mp4", SourceOutMs: 1000, RecordOutMs: 1000}}
	edl := GenerateEDL(clips, "Drop", 29.97)

	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func TestResolveSequence(t *testing.T) {
	seq := player.BuildSequence([]*timeline.Clip{
		{ID: "c1", VideoID: "v1", DurationMs: 5000, SourceEndOffsetMs: 5000, VideoName: "cam1.mp4"},
		{ID: "c2", VideoID: "v2", DurationMs: 4000, SourceStartOffsetMs: 3000, SourceEndOffsetMs: 7000},
		{ID: "c3", VideoID: "missing", DurationMs: 1000, SourceEndOffsetMs: 1000},
	})
	videos := map[string]*store.Video{
		"v1": {ID: "v1", LocalPath: "/media/cam1.mp4"},
		"v2": {ID: "v2", URL: "https://cdn.example.com/cam2.mp4", Name: "cam2.mp4"},
	}

	resolved, unresolved := ResolveSequence(seq, videos)

	if len(resolved) != 2 {
		t.Fatalf("resolved = %d clips, want 2", len(resolved))
	}
	// Local path wins; URL is the fallback.
	if resolved[0].MediaPath != "/media/cam1.mp4" {
		t.Errorf("media path = %q", resolved[0].MediaPath)
	}
	if resolved[1].MediaPath != "https://cdn.example.com/cam2.mp4" {
		t.Errorf("fallback media path = %q", resolved[1].MediaPath)
	}
	if resolved[1].ClipName != "cam2.mp4" {
		t.Errorf("clip name = %q, want video name fallback", resolved[1].ClipName)
	}

	// Record times follow the virtual axis, source times the trim.
	if resolved[1].RecordInMs != 5000 || resolved[1].RecordOutMs != 9000 {
		t.Errorf("record range = [%d, %d), want [5000, 9000)", resolved[1].RecordInMs, resolved[1].RecordOutMs)
	}
	if resolved[1].SourceInMs != 3000 || resolved[1].SourceOutMs != 7000 {
		t.Errorf("source range = [%d, %d), want [3000, 7000)", resolved[1].SourceInMs, resolved[1].SourceOutMs)
	}

	if len(unresolved) != 1 || unresolved[0] != "c3" {
		t.Errorf("unresolved = %v, want [c3]", unresolved)
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		fps  int
		want string
	}{
		{name: "zero", ms: 0, fps: 30, want: "00:00:00:00"},
		{name: "one second", ms: 1000, fps: 30, want: "00:00:01:00"},
		{name: "fractional second", ms: 500, fps: 30, want: "00:00:00:15"},
		{name: "one minute", ms: 60000, fps: 30, want: "00:01:00:00"},
		{name: "one hour", ms: 3600000, fps: 30, want: "01:00:00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := msToTimecode(tc.ms, tc.fps)
			if got != tc.want {
				t.Fatalf("msToTimecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
			}
		})
	}
}
