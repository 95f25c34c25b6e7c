package store

import (
	"time"
)

// Video is an uploaded source video as announced by the ingestion
// collaborator. The agent never touches the bytes; it keeps the metadata
// needed to seed clips and resolve playback sources.
type Video struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	LocalPath    string    `json:"local_path,omitempty"`
	Name         string    `json:"name"`
	DurationMs   int64     `json:"duration_ms"`
	CameraOrder  int       `json:"camera_order"`
	CameraLabel  string    `json:"camera_label"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	SaveOpCreate = "create"
	SaveOpMove   = "move"
	SaveOpRemove = "remove"
)

// FailedSave is a journal row for a persistence call that was rejected.
// The saver retries these; the in-memory model already holds the valid
// target state, so a failed save never reintroduces an overlap.
type FailedSave struct {
	ID        int64     `json:"id"`
	ClipID    string    `json:"clip_id"`
	Op        string    `json:"op"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}
