package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/filmroom/filmroom-agent/internal/export"
	"github.com/filmroom/filmroom-agent/internal/player"
	"github.com/filmroom/filmroom-agent/internal/store"
	"github.com/filmroom/filmroom-agent/internal/timeline"
)

// exportHandler writes a CMX 3600 EDL for one lane or a user-picked clip
// sequence, with record times on the virtual playback axis.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if strings.ToLower(req.Format) != "edl" {
			WriteError(w, http.StatusBadRequest, "format must be edl", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
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
			WriteError(w, http.StatusBadRequest, "nothing to export", "BAD_REQUEST")
			return
		}

		videoList, err := cfg.Repository.ListVideos(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		videos := make(map[string]*store.Video, len(videoList))
		for _, v := range videoList {
			videos[v.ID] = v
		}

		title := export.SanitizeName(req.Title, 120)
		if title == "" {
			title = "filmroom_export"
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = 30.0
		}

		seq := player.BuildSequence(clips)
		resolved, unresolved := export.ResolveSequence(seq, videos)
		if len(resolved) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "no clips could be resolved", "UNRESOLVABLE_CLIPS")
			return
		}

		edl := export.GenerateEDL(resolved, title, frameRate)
		outputPath := filepath.Join(req.OutputDir, title+".edl")
		if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, export.Response{
			Status:          "ok",
			Format:          "edl",
			OutputPath:      outputPath,
			ClipCount:       len(resolved),
			UnresolvedClips: unresolved,
		})
	}
}
