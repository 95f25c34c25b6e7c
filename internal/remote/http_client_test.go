package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/filmroom/filmroom-agent/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_CreateClip_Success(t *testing.T) {
	var receivedPayload clipUpsertPayload
	var receivedAuth string
	var receivedHost string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/timeline/clips" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}

		receivedAuth = r.Header.Get("Authorization")
		receivedHost = r.Host

		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedPayload)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", "tigersfc", testLogger())

	err := client.CreateClip(context.Background(), &timeline.Clip{
		ID:                "clip-1",
		VideoID:           "video-1",
		CameraLane:        2,
		LanePositionMs:    12000,
		DurationMs:        10000,
		SourceEndOffsetMs: 10000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want %q", receivedAuth, "Bearer test-token")
	}
	if receivedHost != "tigersfc.app.filmroom.local" {
		t.Errorf("host = %q, want %q", receivedHost, "tigersfc.app.filmroom.local")
	}
	if receivedPayload.ClipID != "clip-1" || receivedPayload.LanePositionMs != 12000 {
		t.Errorf("payload = %+v", receivedPayload)
	}
}

func TestHTTPClient_UpdateClipPosition_IsIdempotentUpsert(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/timeline/clips/position" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "tok", "", testLogger())

	for i := 0; i < 2; i++ {
		if err := client.UpdateClipPosition(context.Background(), "clip-1", 1, 5000); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestHTTPClient_ServerError_ReturnsSaveError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"maintenance"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "tok", "", testLogger())

	err := client.RemoveClip(context.Background(), "clip-1")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}

	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("error type = %T, want *SaveError", err)
	}
	if !saveErr.IsRetryable() {
		t.Error("5xx save error should be retryable")
	}
}

func TestSaveError_IsRetryable(t *testing.T) {
	if !(&SaveError{StatusCode: http.StatusInternalServerError}).IsRetryable() {
		t.Fatal("expected 5xx save error to be retryable")
	}
	if (&SaveError{StatusCode: http.StatusBadRequest}).IsRetryable() {
		t.Fatal("expected 4xx save error to be permanent")
	}
}
