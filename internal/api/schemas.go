package api

import (
	"time"

	"github.com/filmroom/filmroom-agent/internal/placement"
	"github.com/filmroom/filmroom-agent/internal/store"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string               `json:"state"`
	LaneCount    int                  `json:"lane_count"`
	ClipCount    int                  `json:"clip_count"`
	PendingSaves int                  `json:"pending_saves"`
	SaverPaused  bool                 `json:"saver_paused"`
	Player       *PlayerStateResponse `json:"player,omitempty"`
	Tools        *ToolsResponse       `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFProbe     bool   `json:"ffprobe"`
	FFMpeg      bool   `json:"ffmpeg"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type EnsureLaneRequest struct {
	Number int    `json:"number"`
	Label  string `json:"label,omitempty"`
}

type AddClipRequest struct {
	VideoID       string `json:"video_id"`
	Lane          int    `json:"lane"`
	PositionMs    *int64 `json:"position_ms,omitempty"`
	SourceStartMs int64  `json:"source_start_ms,omitempty"`
	SourceEndMs   int64  `json:"source_end_ms,omitempty"`
}

type MoveClipRequest struct {
	PositionMs int64 `json:"position_ms"`
}

type MoveClipResponse struct {
	Committed       bool                 `json:"committed"`
	PositionMs      int64                `json:"position_ms"`
	FallbackApplied bool                 `json:"fallback_applied"`
	AffectedClips   []placement.ClipMove `json:"affected_clips,omitempty"`
}

type AddMarkerRequest struct {
	ClipID  string `json:"clip_id"`
	TimeMs  int64  `json:"time_ms"`
	Payload any    `json:"payload,omitempty"`
}

type MoveMarkerRequest struct {
	TimeMs int64 `json:"time_ms"`
}

type SyncComputeRequest struct {
	ReferenceLane       int   `json:"reference_lane"`
	ReferencePositionMs int64 `json:"reference_position_ms"`
	CorrectedLane       int   `json:"corrected_lane"`
	CorrectedPositionMs int64 `json:"corrected_position_ms"`
}

type SyncComputeResponse struct {
	LaneNumber int   `json:"lane_number"`
	OffsetMs   int64 `json:"offset_ms"`
}

type SyncApplyRequest struct {
	LaneNumber int   `json:"lane_number"`
	OffsetMs   int64 `json:"offset_ms"`
	Force      bool  `json:"force"`
}

type SyncApplyResponse struct {
	Applied       bool                 `json:"applied"`
	AffectedClips []placement.ClipMove `json:"affected_clips,omitempty"`
}

type SyncConflictResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	ClipIDs []string `json:"clip_ids"`
}

type PlayerLoadRequest struct {
	LaneNumber int      `json:"lane_number,omitempty"`
	ClipIDs    []string `json:"clip_ids,omitempty"`
}

type PlayerSeekRequest struct {
	VirtualMs int64 `json:"virtual_ms"`
}

type PlayerStateResponse struct {
	State           string `json:"state"`
	VirtualMs       int64  `json:"virtual_ms"`
	TotalDurationMs int64  `json:"total_duration_ms"`
	SegmentIndex    int    `json:"segment_index"`
	SegmentCount    int    `json:"segment_count"`
}

type VideoResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	LocalPath    string `json:"local_path,omitempty"`
	Name         string `json:"name"`
	DurationMs   int64  `json:"duration_ms"`
	CameraOrder  int    `json:"camera_order"`
	CameraLabel  string `json:"camera_label,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type FailedSaveResponse struct {
	ID        int64  `json:"id"`
	ClipID    string `json:"clip_id"`
	Op        string `json:"op"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error"`
	CreatedAt string `json:"created_at"`
}

type FailedSavesResponse struct {
	FailedSaves []FailedSaveResponse `json:"failed_saves"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func VideoToResponse(v *store.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID,
		URL:          v.URL,
		LocalPath:    v.LocalPath,
		Name:         v.Name,
		DurationMs:   v.DurationMs,
		CameraOrder:  v.CameraOrder,
		CameraLabel:  v.CameraLabel,
		ThumbnailURL: v.ThumbnailURL,
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
	}
}

func FailedSaveToResponse(s *store.FailedSave) FailedSaveResponse {
	return FailedSaveResponse{
		ID:        s.ID,
		ClipID:    s.ClipID,
		Op:        s.Op,
		Detail:    s.Detail,
		Error:     s.Error,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

// TimelineResponse is the full editor snapshot the web UI renders from.
type TimelineResponse struct {
	Lanes              []*timeline.Lane   `json:"lanes"`
	Markers            []*timeline.Marker `json:"markers"`
	PlayheadPositionMs int64              `json:"playhead_position_ms"`
}
