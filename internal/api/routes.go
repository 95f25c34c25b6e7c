package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filmroom/filmroom-agent/internal/editor"
	"github.com/filmroom/filmroom-agent/internal/ingest"
	"github.com/filmroom/filmroom-agent/internal/lanesync"
	"github.com/filmroom/filmroom-agent/internal/player"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/videos", listVideosHandler(cfg))
		r.Post("/ingest/videos", ingestVideosHandler(cfg))

		r.Get("/timeline", timelineHandler(cfg))
		r.Post("/timeline/lanes", ensureLaneHandler(cfg))
		r.Post("/timeline/clips", addClipHandler(cfg))
		r.Post("/timeline/clips/{id}/move", moveClipHandler(cfg))
		r.Delete("/timeline/clips/{id}", removeClipHandler(cfg))
		r.Post("/timeline/markers", addMarkerHandler(cfg))
		r.Post("/timeline/markers/{id}/move", moveMarkerHandler(cfg))
		r.Post("/timeline/markers/{id}/click", markerClickHandler(cfg))
		r.Post("/timeline/sync/compute", syncComputeHandler(cfg))
		r.Post("/timeline/sync/apply", syncApplyHandler(cfg))
		r.Get("/timeline/failed-saves", failedSavesHandler(cfg))

		r.Post("/player/load", playerLoadHandler(cfg))
		r.Post("/player/play", playerPlayHandler(cfg))
		r.Post("/player/pause", playerPauseHandler(cfg))
		r.Post("/player/stop", playerStopHandler(cfg))
		r.Post("/player/seek", playerSeekHandler(cfg))
		r.Get("/player", playerStateHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Get("/playback/file", playbackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  "0.1.0",
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tl := cfg.Editor.Timeline()
		clipCount := 0
		for _, l := range tl.Lanes {
			clipCount += len(l.Clips)
		}

		pending := len(cfg.Editor.PendingSaves())
		state := "idle"
		if pending > 0 {
			state = "saving"
		}
		if cfg.Saver != nil && cfg.Saver.IsPaused() {
			state = "paused"
		}

		resp := StatusResponse{
			State:        state,
			LaneCount:    len(tl.Lanes),
			ClipCount:    clipCount,
			PendingSaves: pending,
			SaverPaused:  cfg.Saver != nil && cfg.Saver.IsPaused(),
		}

		if cfg.Player != nil {
			resp.Player = playerState(cfg.Player)
		}
		if cfg.Tools != nil {
			tools := cfg.Tools.Get(r.Context())
			resp.Tools = &ToolsResponse{
				FFProbe:     tools.FFProbe.Available,
				FFMpeg:      tools.FFMpeg.Available,
				LastProbeAt: tools.ProbedAt.Format(time.RFC3339),
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Repository.ListVideos(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}

		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func ingestVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payloads []ingest.VideoPayload
		if err := json.NewDecoder(r.Body).Decode(&payloads); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(payloads) == 0 {
			WriteError(w, http.StatusBadRequest, "empty manifest", "BAD_REQUEST")
			return
		}

		res, err := cfg.Ingest.IngestVideos(r.Context(), payloads)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tl := cfg.Editor.Timeline()
		WriteJSON(w, http.StatusOK, TimelineResponse{
			Lanes:              tl.Lanes,
			Markers:            tl.Markers,
			PlayheadPositionMs: tl.PlayheadPositionMs,
		})
	}
}

func ensureLaneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EnsureLaneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Number < 1 {
			WriteError(w, http.StatusBadRequest, "lane number must be >= 1", "BAD_REQUEST")
			return
		}

		if err := cfg.Editor.EnsureLane(r.Context(), req.Number, req.Label); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// addClipHandler creates a clip. Without position_ms the clip appends at
// the lane end; with it, the positioning engine resolves conflicts and
// the response reports any fallback.
func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}
		if req.Lane < 1 {
			WriteError(w, http.StatusBadRequest, "lane must be >= 1", "BAD_REQUEST")
			return
		}

		if req.PositionMs == nil {
			clip, err := cfg.Editor.AddClip(r.Context(), req.VideoID, req.Lane, req.SourceStartMs, req.SourceEndMs)
			if err != nil {
				writeEditorError(w, err)
				return
			}
			WriteJSON(w, http.StatusCreated, editor.PlaceResult{Clip: clip})
			return
		}

		res, err := cfg.Editor.PlaceClip(r.Context(), req.VideoID, req.Lane, *req.PositionMs, req.SourceStartMs, req.SourceEndMs)
		if err != nil {
			writeEditorError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, res)
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req MoveClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		res, err := cfg.Editor.MoveClip(r.Context(), id, req.PositionMs)
		if err != nil {
			writeEditorError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, MoveClipResponse{
			Committed:       res.Committed,
			PositionMs:      res.PositionMs,
			FallbackApplied: res.FallbackApplied,
			AffectedClips:   res.AffectedClips,
		})
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.Editor.RemoveClip(r.Context(), id); err != nil {
			writeEditorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddMarkerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		m := &timeline.Marker{ClipID: req.ClipID, TimeMs: req.TimeMs}
		if req.Payload != nil {
			// The payload is opaque to the agent; it round-trips untouched.
			raw, err := json.Marshal(req.Payload)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid marker payload", "BAD_REQUEST")
				return
			}
			m.Payload = raw
		}

		if err := cfg.Editor.AddMarker(r.Context(), m); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusCreated, m)
	}
}

func moveMarkerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req MoveMarkerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Editor.MoveMarker(r.Context(), id, req.TimeMs); err != nil {
			writeEditorError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func markerClickHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Editor.MarkerClicked(chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func syncComputeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncComputeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		offset := lanesync.ComputeOffset(
			lanesync.Anchor{LaneNumber: req.ReferenceLane, PositionMs: req.ReferencePositionMs},
			lanesync.Anchor{LaneNumber: req.CorrectedLane, PositionMs: req.CorrectedPositionMs},
		)
		WriteJSON(w, http.StatusOK, SyncComputeResponse{
			LaneNumber: req.CorrectedLane,
			OffsetMs:   offset,
		})
	}
}

func syncApplyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SyncApplyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		moves, err := cfg.Editor.ApplySyncOffset(r.Context(), req.LaneNumber, req.OffsetMs, req.Force)
		if err != nil {
			var conflict *lanesync.ConflictError
			if errors.As(err, &conflict) {
				WriteJSON(w, http.StatusConflict, SyncConflictResponse{
					Error:   conflict.Error(),
					Code:    "SYNC_CONFLICT",
					ClipIDs: conflict.ClipIDs,
				})
				return
			}
			writeEditorError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, SyncApplyResponse{Applied: true, AffectedClips: moves})
	}
}

func failedSavesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saves, err := cfg.Repository.ListFailedSaves(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list failed saves", "INTERNAL_ERROR")
			return
		}

		resp := FailedSavesResponse{FailedSaves: make([]FailedSaveResponse, len(saves))}
		for i, s := range saves {
			resp.FailedSaves[i] = FailedSaveToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// playerLoadHandler builds the virtual sequence for either one lane in
// position order or an explicit ordered clip selection.
func playerLoadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayerLoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var clips []*timeline.Clip
		var err error
		switch {
		case len(req.ClipIDs) > 0:
			clips, err = cfg.Editor.Clips(req.ClipIDs)
		case req.LaneNumber >= 1:
			clips, err = cfg.Editor.LaneClips(req.LaneNumber)
		default:
			WriteError(w, http.StatusBadRequest, "lane_number or clip_ids required", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeEditorError(w, err)
			return
		}
		if len(clips) == 0 {
			WriteError(w, http.StatusBadRequest, "nothing to play", "BAD_REQUEST")
			return
		}

		if err := cfg.Player.Load(player.BuildSequence(clips)); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, playerState(cfg.Player))
	}
}

func playerPlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Player.Play(); err != nil {
			WriteError(w, http.StatusConflict, err.Error(), "PLAYER_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, playerState(cfg.Player))
	}
}

func playerPauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Pause()
		WriteJSON(w, http.StatusOK, playerState(cfg.Player))
	}
}

func playerStopHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Stop()
		WriteJSON(w, http.StatusOK, playerState(cfg.Player))
	}
}

func playerSeekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayerSeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Player.Seek(req.VirtualMs); err != nil {
			if errors.Is(err, player.ErrSeekOutOfRange) {
				WriteError(w, http.StatusBadRequest, err.Error(), "SEEK_OUT_OF_RANGE")
				return
			}
			WriteError(w, http.StatusConflict, err.Error(), "PLAYER_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, playerState(cfg.Player))
	}
}

func playerStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, playerState(cfg.Player))
	}
}

func playerState(p *player.Player) *PlayerStateResponse {
	resp := &PlayerStateResponse{
		State:        string(p.State()),
		VirtualMs:    p.VirtualTimeMs(),
		SegmentIndex: p.SegmentIndex(),
	}
	if seq := p.Sequence(); seq != nil {
		resp.TotalDurationMs = seq.TotalDurationMs()
		resp.SegmentCount = len(seq.Segments)
	}
	return resp
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("video_id")
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Playback.ServeVideo(r.Context(), w, r, videoID); err != nil {
			cfg.Logger.Error("playback error", "error", err, "video_id", videoID)
		}
	}
}

func writeEditorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, editor.ErrClipNotFound),
		errors.Is(err, editor.ErrVideoNotFound),
		errors.Is(err, editor.ErrLaneNotFound),
		errors.Is(err, editor.ErrMarkerNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	default:
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	}
}
