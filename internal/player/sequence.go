package player

import (
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

// Segment is one clip's slot on the virtual time axis.
type Segment struct {
	Clip           *timeline.Clip `json:"clip"`
	VirtualStartMs int64          `json:"virtual_start_ms"`
	VirtualEndMs   int64          `json:"virtual_end_ms"`
	Unplayable     bool           `json:"unplayable,omitempty"`
}

// LocalTimeMs converts a virtual time inside the segment to the clip's
// source-file time base.
func (s *Segment) LocalTimeMs(virtualMs int64) int64 {
	return s.Clip.SourceStartOffsetMs + (virtualMs - s.VirtualStartMs)
}

// VirtualTimeMs converts a source-file time back to the virtual axis.
func (s *Segment) VirtualTimeMs(localMs int64) int64 {
	return s.VirtualStartMs + (localMs - s.Clip.SourceStartOffsetMs)
}

// Sequence is the concatenated virtual timeline for an ordered set of
// clips: either one lane in position order, or a user-picked sequence.
type Sequence struct {
	Segments []*Segment
}

// BuildSequence lays the clips end to end on a synthetic time axis.
// Segment i starts where segment i-1 ended; the total virtual duration is
// the sum of the clips' trimmed durations.
func BuildSequence(clips []*timeline.Clip) *Sequence {
	seq := &Sequence{}
	var cursor int64
	for _, c := range clips {
		seg := &Segment{
			Clip:           c,
			VirtualStartMs: cursor,
			VirtualEndMs:   cursor + c.DurationMs,
		}
		seq.Segments = append(seq.Segments, seg)
		cursor = seg.VirtualEndMs
	}
	return seq
}

// TotalDurationMs returns the full extent of the virtual axis.
func (s *Sequence) TotalDurationMs() int64 {
	if len(s.Segments) == 0 {
		return 0
	}
	return s.Segments[len(s.Segments)-1].VirtualEndMs
}

// SegmentAt finds the segment containing the virtual time, linearly.
// Sequences hold a handful of segments, so a scan is fine. Returns -1
// when the time falls outside the axis.
func (s *Sequence) SegmentAt(virtualMs int64) int {
	for i, seg := range s.Segments {
		if virtualMs >= seg.VirtualStartMs && virtualMs < seg.VirtualEndMs {
			return i
		}
	}
	return -1
}
