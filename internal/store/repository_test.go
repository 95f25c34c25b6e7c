package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/filmroom/filmroom-agent/internal/db"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	return database, NewRepository(database.Conn())
}

func testClip(id string, lane int, pos, dur int64) *timeline.Clip {
	return &timeline.Clip{
		ID:                id,
		VideoID:           "video-" + id,
		CameraLane:        lane,
		LanePositionMs:    pos,
		DurationMs:        dur,
		SourceEndOffsetMs: dur,
		VideoName:         "game.mp4",
		CreatedAt:         time.Now(),
	}
}

func TestRepository_VideoRoundTrip(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	v := &Video{
		ID:           "video-1",
		URL:          "https://cdn.example.com/game.mp4",
		Name:         "game.mp4",
		DurationMs:   3600000,
		CameraOrder:  1,
		CameraLabel:  "sideline",
		ThumbnailURL: "https://cdn.example.com/game.jpg",
		CreatedAt:    time.Now(),
	}
	if err := repo.UpsertVideo(ctx, v); err != nil {
		t.Fatalf("UpsertVideo() error = %v", err)
	}

	got, err := repo.GetVideo(ctx, "video-1")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetVideo() = nil")
	}
	if got.CameraLabel != "sideline" || got.DurationMs != 3600000 {
		t.Errorf("got %+v", got)
	}

	// Upsert with the same id updates in place.
	v.CameraLabel = "endzone"
	if err := repo.UpsertVideo(ctx, v); err != nil {
		t.Fatalf("second UpsertVideo() error = %v", err)
	}
	videos, err := repo.ListVideos(ctx)
	if err != nil {
		t.Fatalf("ListVideos() error = %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("video count = %d, want 1", len(videos))
	}
	if videos[0].CameraLabel != "endzone" {
		t.Errorf("camera label = %s, want endzone", videos[0].CameraLabel)
	}
}

func TestRepository_GetVideo_Missing(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()

	got, err := repo.GetVideo(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetVideo(missing) = %+v, want nil", got)
	}
}

func TestRepository_ClipUpsertIsIdempotent(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	c := testClip("clip-1", 1, 5000, 10000)
	if err := repo.UpsertClip(ctx, c); err != nil {
		t.Fatalf("UpsertClip() error = %v", err)
	}
	if err := repo.UpsertClip(ctx, c); err != nil {
		t.Fatalf("replayed UpsertClip() error = %v", err)
	}

	clips, err := repo.ListClips(ctx)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(clips) != 1 {
		t.Errorf("clip count = %d, want 1", len(clips))
	}
}

func TestRepository_UpdateClipPosition(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	if err := repo.UpsertClip(ctx, testClip("clip-1", 2, 0, 10000)); err != nil {
		t.Fatalf("UpsertClip() error = %v", err)
	}
	if err := repo.UpdateClipPosition(ctx, "clip-1", 2, 12000); err != nil {
		t.Fatalf("UpdateClipPosition() error = %v", err)
	}

	got, err := repo.GetClip(ctx, "clip-1")
	if err != nil {
		t.Fatalf("GetClip() error = %v", err)
	}
	if got.LanePositionMs != 12000 {
		t.Errorf("position = %d, want 12000", got.LanePositionMs)
	}
	if got.CameraLane != 2 {
		t.Errorf("camera lane = %d, want 2 (must never change)", got.CameraLane)
	}
}

func TestRepository_ListClips_Ordered(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	repo.UpsertClip(ctx, testClip("clip-b", 1, 9000, 1000))
	repo.UpsertClip(ctx, testClip("clip-a", 1, 0, 1000))
	repo.UpsertClip(ctx, testClip("clip-c", 2, 500, 1000))

	clips, err := repo.ListClips(ctx)
	if err != nil {
		t.Fatalf("ListClips() error = %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("clip count = %d, want 3", len(clips))
	}
	want := []string{"clip-a", "clip-b", "clip-c"}
	for i, w := range want {
		if clips[i].ID != w {
			t.Errorf("clips[%d] = %s, want %s", i, clips[i].ID, w)
		}
	}
}

func TestRepository_DeleteClip(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	repo.UpsertClip(ctx, testClip("clip-1", 1, 0, 1000))
	if err := repo.DeleteClip(ctx, "clip-1"); err != nil {
		t.Fatalf("DeleteClip() error = %v", err)
	}

	got, err := repo.GetClip(ctx, "clip-1")
	if err != nil {
		t.Fatalf("GetClip() error = %v", err)
	}
	if got != nil {
		t.Error("clip still present after delete")
	}

	// Deleting again is a no-op, not an error.
	if err := repo.DeleteClip(ctx, "clip-1"); err != nil {
		t.Errorf("second DeleteClip() error = %v", err)
	}
}

func TestRepository_Markers(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	m := &timeline.Marker{
		ID:      "marker-1",
		ClipID:  "clip-1",
		TimeMs:  4500,
		Payload: json.RawMessage(`{"tag":"turnover"}`),
	}
	if err := repo.UpsertMarker(ctx, m); err != nil {
		t.Fatalf("UpsertMarker() error = %v", err)
	}
	if err := repo.UpdateMarkerTime(ctx, "marker-1", 6000); err != nil {
		t.Fatalf("UpdateMarkerTime() error = %v", err)
	}

	markers, err := repo.ListMarkers(ctx)
	if err != nil {
		t.Fatalf("ListMarkers() error = %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("marker count = %d, want 1", len(markers))
	}
	if markers[0].TimeMs != 6000 {
		t.Errorf("marker time = %d, want 6000", markers[0].TimeMs)
	}
	// Payload passes through untouched.
	if string(markers[0].Payload) != `{"tag":"turnover"}` {
		t.Errorf("payload = %s", markers[0].Payload)
	}
}

func TestRepository_FailedSaves(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	s := &FailedSave{
		ClipID:    "clip-1",
		Op:        SaveOpMove,
		Detail:    "position_ms=12000",
		Error:     "connection refused",
		CreatedAt: time.Now(),
	}
	if err := repo.RecordFailedSave(ctx, s); err != nil {
		t.Fatalf("RecordFailedSave() error = %v", err)
	}

	saves, err := repo.ListFailedSaves(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailedSaves() error = %v", err)
	}
	if len(saves) != 1 {
		t.Fatalf("failed save count = %d, want 1", len(saves))
	}
	if saves[0].Op != SaveOpMove || saves[0].ClipID != "clip-1" {
		t.Errorf("got %+v", saves[0])
	}

	if err := repo.DeleteFailedSave(ctx, saves[0].ID); err != nil {
		t.Fatalf("DeleteFailedSave() error = %v", err)
	}
	saves, _ = repo.ListFailedSaves(ctx, 10)
	if len(saves) != 0 {
		t.Errorf("failed save count after delete = %d, want 0", len(saves))
	}
}

func TestLoadTimeline(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	repo.UpsertLane(ctx, 1, "sideline", 0)
	repo.UpsertLane(ctx, 2, "endzone", 1500)
	repo.UpsertClip(ctx, testClip("clip-b", 1, 9000, 1000))
	repo.UpsertClip(ctx, testClip("clip-a", 1, 0, 1000))
	repo.UpsertMarker(ctx, &timeline.Marker{ID: "m1", ClipID: "clip-a", TimeMs: 100})

	tl, err := LoadTimeline(ctx, repo)
	if err != nil {
		t.Fatalf("LoadTimeline() error = %v", err)
	}

	if len(tl.Lanes) != 2 {
		t.Fatalf("lane count = %d, want 2", len(tl.Lanes))
	}
	lane1 := tl.Lane(1)
	if lane1 == nil || len(lane1.Clips) != 2 {
		t.Fatal("lane 1 missing clips")
	}
	if lane1.Clips[0].ID != "clip-a" {
		t.Errorf("lane 1 first clip = %s, want clip-a", lane1.Clips[0].ID)
	}
	if got := tl.Lane(2).SyncOffsetMs; got != 1500 {
		t.Errorf("lane 2 sync offset = %d, want 1500", got)
	}
	if len(tl.Markers) != 1 {
		t.Errorf("marker count = %d, want 1", len(tl.Markers))
	}
}

func TestLoadTimeline_CreatesMissingLane(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	// A clip whose lane row was never written still loads.
	repo.UpsertClip(ctx, testClip("clip-a", 7, 0, 1000))

	tl, err := LoadTimeline(ctx, repo)
	if err != nil {
		t.Fatalf("LoadTimeline() error = %v", err)
	}
	if tl.Lane(7) == nil || len(tl.Lane(7).Clips) != 1 {
		t.Error("clip's lane not synthesized")
	}
}

func TestRepository_Config(t *testing.T) {
	database, repo := setupTestDB(t)
	defer database.Close()
	ctx := context.Background()

	if err := repo.SetConfig(ctx, "auth_token", "secret"); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	got, err := repo.GetConfig(ctx, "auth_token")
	if err != nil {
		t.Fatalf("GetConfig() error = %v", err)
	}
	if got != "secret" {
		t.Errorf("config value = %s, want secret", got)
	}

	missing, err := repo.GetConfig(ctx, "nope")
	if err != nil {
		t.Fatalf("GetConfig(missing) error = %v", err)
	}
	if missing != "" {
		t.Errorf("missing config = %q, want empty", missing)
	}
}
