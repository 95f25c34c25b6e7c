package watcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/filmroom/filmroom-agent/internal/editor"
	"github.com/filmroom/filmroom-agent/internal/ingest"
)

// camPattern matches the capture-rig naming convention "cam<N>_...".
var camPattern = regexp.MustCompile(`(?i)^cam(\d+)[_-]`)

// Importer turns a settled upload into a catalog video and appends a
// clip for it at the end of its camera lane.
type Importer struct {
	ingest *ingest.Service
	editor *editor.Service
	logger *slog.Logger

	// DefaultLane receives files without a cam<N>_ prefix.
	DefaultLane int
}

func NewImporter(ing *ingest.Service, ed *editor.Service, logger *slog.Logger) *Importer {
	return &Importer{ingest: ing, editor: ed, logger: logger, DefaultLane: 1}
}

func (i *Importer) HandleFile(ctx context.Context, path string) {
	name := filepath.Base(path)
	lane := i.DefaultLane
	if m := camPattern.FindStringSubmatch(name); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
			lane = n
		}
	}

	videoID := localVideoID(path)
	res, err := i.ingest.IngestVideos(ctx, []ingest.VideoPayload{{
		VideoID:     videoID,
		LocalPath:   path,
		Name:        name,
		CameraOrder: lane,
	}})
	if err != nil {
		i.logger.Error("upload ingest failed", "path", path, "error", err)
		return
	}
	if res.Accepted == 0 {
		reason := "unknown"
		if len(res.Rejected) > 0 {
			reason = res.Rejected[0].Reason
		}
		i.logger.Warn("upload rejected", "path", path, "reason", reason)
		return
	}

	clip, err := i.editor.AddClip(ctx, videoID, lane, 0, 0)
	if err != nil {
		i.logger.Error("failed to append clip for upload", "video_id", videoID, "error", err)
		return
	}
	i.logger.Info("upload appended to timeline",
		"video_id", videoID, "clip_id", clip.ID, "lane", lane, "position_ms", clip.LanePositionMs)
}

// localVideoID derives a stable id from the file path so re-scans of the
// same file converge on the same video row.
func localVideoID(path string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(filepath.Clean(path))))
	return fmt.Sprintf("local-%x", sum[:8])
}
