// Package playback serves locally cached video files to the browser
// player with byte-range support, which the media pipelines need for
// seeking without downloading whole files.
package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/filmroom/filmroom-agent/internal/store"
)

type Server struct {
	repo   store.Repository
	logger *slog.Logger
}

func NewServer(repo store.Repository, logger *slog.Logger) *Server {
	return &Server{repo: repo, logger: logger}
}

// ServeVideo resolves the catalog video and streams its local file.
// Videos without a local copy 404; the browser falls back to the CDN URL.
func (s *Server) ServeVideo(ctx context.Context, w http.ResponseWriter, r *http.Request, videoID string) error {
	video, err := s.repo.GetVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("resolve video %s: %w", videoID, err)
	}
	if video == nil || video.LocalPath == "" {
		http.Error(w, "no local file for video", http.StatusNotFound)
		return nil
	}

	s.logger.Debug("serving local video", "video_id", videoID, "path", video.LocalPath)
	return s.ServeFile(w, r, video.LocalPath)
}

func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rangeHeader := r.Header.Get("Range")
	parsedRange, err := ParseRange(rangeHeader, size)

	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if err != nil && err != ErrInvalidRange {
		return err
	}

	if parsedRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", parsedRange.ContentLength()))
	w.Header().Set("Content-Range", parsedRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(parsedRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	io.CopyN(w, file, parsedRange.ContentLength())
	return nil
}
