package timeline

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

// GridMs is the quantization grid for clip positions and durations.
// Every position committed to the model is a multiple of this.
const GridMs = 100

// Clip is a placed, trimmed reference to an uploaded video on a lane's
// local time axis. The camera lane is fixed at creation and never changes.
type Clip struct {
	ID                  string    `json:"id"`
	VideoID             string    `json:"video_id"`
	CameraLane          int       `json:"camera_lane"`
	LanePositionMs      int64     `json:"lane_position_ms"`
	DurationMs          int64     `json:"duration_ms"`
	SourceStartOffsetMs int64     `json:"source_start_offset_ms"`
	SourceEndOffsetMs   int64     `json:"source_end_offset_ms"`
	VideoName           string    `json:"video_name"`
	CreatedAt           time.Time `json:"created_at"`
}

// EndMs returns the exclusive end of the clip's interval on the lane axis.
func (c *Clip) EndMs() int64 {
	return c.LanePositionMs + c.DurationMs
}

// Overlaps reports whether the clip's interval intersects [startMs, endMs).
func (c *Clip) Overlaps(startMs, endMs int64) bool {
	return c.LanePositionMs < endMs && startMs < c.EndMs()
}

// Lane is one camera angle's track of clips, ordered by lane position.
type Lane struct {
	Number       int     `json:"number"`
	Label        string  `json:"label"`
	SyncOffsetMs int64   `json:"sync_offset_ms"`
	Clips        []*Clip `json:"clips"`
}

// Marker is an opaque annotation anchored to a point on a clip. The agent
// stores and repositions markers but never interprets the payload.
type Marker struct {
	ID      string          `json:"id"`
	ClipID  string          `json:"clip_id"`
	TimeMs  int64           `json:"time_ms"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Timeline is the aggregate editor state: all lanes plus the playhead.
// Total duration is always derived from clip state, never stored.
type Timeline struct {
	Lanes              []*Lane   `json:"lanes"`
	PlayheadPositionMs int64     `json:"playhead_position_ms"`
	Markers            []*Marker `json:"markers,omitempty"`
}

// Quantize snaps a millisecond value to the nearest grid step.
// Negative inputs clamp to zero.
func Quantize(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return (ms + GridMs/2) / GridMs * GridMs
}

// QuantizeDelta snaps a signed millisecond delta to the nearest grid step,
// preserving sign. Sync offsets may be negative.
func QuantizeDelta(ms int64) int64 {
	if ms < 0 {
		return -Quantize(-ms)
	}
	return Quantize(ms)
}

// Lane returns the lane with the given number, or nil.
func (t *Timeline) Lane(number int) *Lane {
	for _, l := range t.Lanes {
		if l.Number == number {
			return l
		}
	}
	return nil
}

// FindClip locates a clip anywhere on the timeline.
// Returns the owning lane and the clip, or nil, nil.
func (t *Timeline) FindClip(clipID string) (*Lane, *Clip) {
	for _, l := range t.Lanes {
		for _, c := range l.Clips {
			if c.ID == clipID {
				return l, c
			}
		}
	}
	return nil, nil
}

// FindMarker locates a marker by id, or nil.
func (t *Timeline) FindMarker(markerID string) *Marker {
	for _, m := range t.Markers {
		if m.ID == markerID {
			return m
		}
	}
	return nil
}

// TotalDuration recomputes the timeline's extent from current clip state.
func (t *Timeline) TotalDuration() int64 {
	var max int64
	for _, l := range t.Lanes {
		if end := l.LastClipEnd(); end > max {
			max = end
		}
	}
	return max
}

// ClipsOverlapping returns the clips in the lane whose intervals intersect
// [startMs, endMs), excluding the clip with excludeID, in position order.
func (l *Lane) ClipsOverlapping(startMs, endMs int64, excludeID string) []*Clip {
	var hits []*Clip
	for _, c := range l.Clips {
		if c.ID == excludeID {
			continue
		}
		if c.Overlaps(startMs, endMs) {
			hits = append(hits, c)
		}
	}
	return hits
}

// LastClipEnd returns the end of the lane's last clip, or 0 for an empty lane.
func (l *Lane) LastClipEnd() int64 {
	var max int64
	for _, c := range l.Clips {
		if end := c.EndMs(); end > max {
			max = end
		}
	}
	return max
}

// Clip returns the lane's clip with the given id, or nil.
func (l *Lane) Clip(clipID string) *Clip {
	for _, c := range l.Clips {
		if c.ID == clipID {
			return c
		}
	}
	return nil
}

// SortClips orders the lane's clips by lane position, ascending.
// Insertion sort: lanes hold tens of clips at most.
func (l *Lane) SortClips() {
	for i := 1; i < len(l.Clips); i++ {
		for j := i; j > 0 && l.Clips[j-1].LanePositionMs > l.Clips[j].LanePositionMs; j-- {
			l.Clips[j-1], l.Clips[j] = l.Clips[j], l.Clips[j-1]
		}
	}
}

// Validate checks the lane's no-overlap invariant and grid alignment.
func (l *Lane) Validate() error {
	for i, a := range l.Clips {
		if a.LanePositionMs < 0 || a.DurationMs < 0 {
			return fmt.Errorf("clip %s has negative position or duration", a.ID)
		}
		if a.LanePositionMs%GridMs != 0 {
			return fmt.Errorf("clip %s position %dms is off-grid", a.ID, a.LanePositionMs)
		}
		for _, b := range l.Clips[i+1:] {
			if a.Overlaps(b.LanePositionMs, b.EndMs()) {
				return fmt.Errorf("clips %s and %s overlap in lane %d", a.ID, b.ID, l.Number)
			}
		}
	}
	return nil
}

// Clone deep-copies the timeline. Gestures and handlers operate on a
// snapshot; the editor swaps snapshots atomically on commit.
func (t *Timeline) Clone() *Timeline {
	out := &Timeline{PlayheadPositionMs: t.PlayheadPositionMs}
	for _, l := range t.Lanes {
		nl := &Lane{Number: l.Number, Label: l.Label, SyncOffsetMs: l.SyncOffsetMs}
		for _, c := range l.Clips {
			cc := *c
			nl.Clips = append(nl.Clips, &cc)
		}
		out.Lanes = append(out.Lanes, nl)
	}
	for _, m := range t.Markers {
		mm := *m
		if m.Payload != nil {
			mm.Payload = append(json.RawMessage(nil), m.Payload...)
		}
		out.Markers = append(out.Markers, &mm)
	}
	return out
}

// NewID generates a random identifier for clips, markers, and videos.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
