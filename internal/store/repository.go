package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/filmroom/filmroom-agent/internal/timeline"
)

type Repository interface {
	UpsertVideo(ctx context.Context, v *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context) ([]*Video, error)

	UpsertLane(ctx context.Context, number int, label string, syncOffsetMs int64) error
	ListLanes(ctx context.Context) ([]*timeline.Lane, error)
	UpdateLaneSyncOffset(ctx context.Context, number int, syncOffsetMs int64) error

	UpsertClip(ctx context.Context, c *timeline.Clip) error
	GetClip(ctx context.Context, id string) (*timeline.Clip, error)
	UpdateClipPosition(ctx context.Context, id string, lane int, positionMs int64) error
	DeleteClip(ctx context.Context, id string) error
	ListClips(ctx context.Context) ([]*timeline.Clip, error)

	UpsertMarker(ctx context.Context, m *timeline.Marker) error
	UpdateMarkerTime(ctx context.Context, id string, timeMs int64) error
	DeleteMarker(ctx context.Context, id string) error
	ListMarkers(ctx context.Context) ([]*timeline.Marker, error)

	RecordFailedSave(ctx context.Context, s *FailedSave) error
	ListFailedSaves(ctx context.Context, limit int) ([]*FailedSave, error)
	DeleteFailedSave(ctx context.Context, id int64) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, url, local_path, name, duration_ms, camera_order, camera_label, thumbnail_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			local_path = excluded.local_path,
			name = excluded.name,
			duration_ms = excluded.duration_ms,
			camera_order = excluded.camera_order,
			camera_label = excluded.camera_label,
			thumbnail_url = excluded.thumbnail_url
	`, v.ID, v.URL, nullString(v.LocalPath), v.Name, v.DurationMs, v.CameraOrder,
		v.CameraLabel, nullString(v.ThumbnailURL), v.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, url, local_path, name, duration_ms, camera_order, camera_label, thumbnail_url, created_at
		FROM videos WHERE id = ?
	`, id)
	return scanVideo(row.Scan)
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, url, local_path, name, duration_ms, camera_order, camera_label, thumbnail_url, created_at
		FROM videos ORDER BY camera_order, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows.Scan)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func scanVideo(scan func(...any) error) (*Video, error) {
	var v Video
	var localPath, thumbnailURL sql.NullString
	var createdAt string

	err := scan(&v.ID, &v.URL, &localPath, &v.Name, &v.DurationMs, &v.CameraOrder,
		&v.CameraLabel, &thumbnailURL, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.LocalPath = localPath.String
	v.ThumbnailURL = thumbnailURL.String
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}

func (r *SQLiteRepository) UpsertLane(ctx context.Context, number int, label string, syncOffsetMs int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lanes (number, label, sync_offset_ms) VALUES (?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			label = excluded.label,
			sync_offset_ms = excluded.sync_offset_ms
	`, number, label, syncOffsetMs)
	return err
}

func (r *SQLiteRepository) ListLanes(ctx context.Context) ([]*timeline.Lane, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT number, label, sync_offset_ms FROM lanes ORDER BY number
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lanes []*timeline.Lane
	for rows.Next() {
		var l timeline.Lane
		if err := rows.Scan(&l.Number, &l.Label, &l.SyncOffsetMs); err != nil {
			return nil, err
		}
		lanes = append(lanes, &l)
	}
	return lanes, rows.Err()
}

func (r *SQLiteRepository) UpdateLaneSyncOffset(ctx context.Context, number int, syncOffsetMs int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE lanes SET sync_offset_ms = ? WHERE number = ?", syncOffsetMs, number)
	return err
}

// UpsertClip behaves as an idempotent upsert so replays of the same save
// converge on the same row.
func (r *SQLiteRepository) UpsertClip(ctx context.Context, c *timeline.Clip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, video_id, camera_lane, lane_position_ms, duration_ms,
			source_start_offset_ms, source_end_offset_ms, video_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lane_position_ms = excluded.lane_position_ms,
			duration_ms = excluded.duration_ms,
			source_start_offset_ms = excluded.source_start_offset_ms,
			source_end_offset_ms = excluded.source_end_offset_ms,
			video_name = excluded.video_name
	`, c.ID, c.VideoID, c.CameraLane, c.LanePositionMs, c.DurationMs,
		c.SourceStartOffsetMs, c.SourceEndOffsetMs, c.VideoName,
		c.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetClip(ctx context.Context, id string) (*timeline.Clip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, video_id, camera_lane, lane_position_ms, duration_ms,
			source_start_offset_ms, source_end_offset_ms, video_name, created_at
		FROM clips WHERE id = ?
	`, id)
	return scanClip(row.Scan)
}

func (r *SQLiteRepository) UpdateClipPosition(ctx context.Context, id string, lane int, positionMs int64) error {
	// The camera lane never changes after creation; it is part of the
	// update only so replays against a missing row stay detectable.
	_, err := r.db.ExecContext(ctx,
		"UPDATE clips SET lane_position_ms = ? WHERE id = ? AND camera_lane = ?",
		positionMs, id, lane)
	return err
}

func (r *SQLiteRepository) DeleteClip(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM clips WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) ListClips(ctx context.Context) ([]*timeline.Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, video_id, camera_lane, lane_position_ms, duration_ms,
			source_start_offset_ms, source_end_offset_ms, video_name, created_at
		FROM clips ORDER BY camera_lane, lane_position_ms
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*timeline.Clip
	for rows.Next() {
		c, err := scanClip(rows.Scan)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func scanClip(scan func(...any) error) (*timeline.Clip, error) {
	var c timeline.Clip
	var createdAt string

	err := scan(&c.ID, &c.VideoID, &c.CameraLane, &c.LanePositionMs, &c.DurationMs,
		&c.SourceStartOffsetMs, &c.SourceEndOffsetMs, &c.VideoName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (r *SQLiteRepository) UpsertMarker(ctx context.Context, m *timeline.Marker) error {
	payload := "null"
	if m.Payload != nil {
		payload = string(m.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO markers (id, clip_id, time_ms, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			time_ms = excluded.time_ms,
			payload = excluded.payload
	`, m.ID, m.ClipID, m.TimeMs, payload)
	return err
}

func (r *SQLiteRepository) UpdateMarkerTime(ctx context.Context, id string, timeMs int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE markers SET time_ms = ? WHERE id = ?", timeMs, id)
	return err
}

func (r *SQLiteRepository) DeleteMarker(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM markers WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) ListMarkers(ctx context.Context) ([]*timeline.Marker, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, clip_id, time_ms, payload FROM markers ORDER BY time_ms")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []*timeline.Marker
	for rows.Next() {
		var m timeline.Marker
		var payload sql.NullString
		if err := rows.Scan(&m.ID, &m.ClipID, &m.TimeMs, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "null" {
			m.Payload = json.RawMessage(payload.String)
		}
		markers = append(markers, &m)
	}
	return markers, rows.Err()
}

func (r *SQLiteRepository) RecordFailedSave(ctx context.Context, s *FailedSave) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failed_saves (clip_id, op, detail, error, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ClipID, s.Op, nullString(s.Detail), s.Error, s.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) ListFailedSaves(ctx context.Context, limit int) ([]*FailedSave, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, clip_id, op, detail, error, created_at
		FROM failed_saves ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var saves []*FailedSave
	for rows.Next() {
		var s FailedSave
		var detail sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &s.ClipID, &s.Op, &detail, &s.Error, &createdAt); err != nil {
			return nil, err
		}
		s.Detail = detail.String
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		saves = append(saves, &s)
	}
	return saves, rows.Err()
}

func (r *SQLiteRepository) DeleteFailedSave(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM failed_saves WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// LoadTimeline assembles the persisted editor state: lanes in number
// order, each lane's clips in position order, markers appended last.
func LoadTimeline(ctx context.Context, repo Repository) (*timeline.Timeline, error) {
	lanes, err := repo.ListLanes(ctx)
	if err != nil {
		return nil, err
	}
	clips, err := repo.ListClips(ctx)
	if err != nil {
		return nil, err
	}
	markers, err := repo.ListMarkers(ctx)
	if err != nil {
		return nil, err
	}

	tl := &timeline.Timeline{Lanes: lanes, Markers: markers}
	for _, c := range clips {
		lane := tl.Lane(c.CameraLane)
		if lane == nil {
			lane = &timeline.Lane{Number: c.CameraLane}
			tl.Lanes = append(tl.Lanes, lane)
		}
		lane.Clips = append(lane.Clips, c)
	}
	for _, l := range tl.Lanes {
		l.SortClips()
	}
	return tl, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
