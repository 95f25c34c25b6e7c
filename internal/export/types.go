package export

// Request asks for a cut list of either one whole lane or an explicit
// ordered clip selection.
type Request struct {
	Title      string   `json:"title"`
	Format     string   `json:"format"`
	FrameRate  float64  `json:"frame_rate"`
	OutputDir  string   `json:"output_dir"`
	LaneNumber int      `json:"lane_number,omitempty"`
	ClipIDs    []string `json:"clip_ids,omitempty"`
}

// ResolvedClip is one EDL event: source in/out on the media file and
// record in/out on the virtual playback axis.
type ResolvedClip struct {
	ClipName    string
	MediaPath   string
	SourceInMs  int64
	SourceOutMs int64
	RecordInMs  int64
	RecordOutMs int64
}

type Response struct {
	Status          string   `json:"status"`
	Format          string   `json:"format"`
	OutputPath      string   `json:"output_path"`
	ClipCount       int      `json:"clip_count"`
	UnresolvedClips []string `json:"unresolved_clips"`
}
