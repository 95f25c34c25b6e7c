// Package ingest accepts video manifests from the web app and registers
// them with the local catalog. Each entry carries its camera assignment;
// lanes are created on demand so the timeline always has a row for every
// camera angle that has footage.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/filmroom/filmroom-agent/internal/editor"
	"github.com/filmroom/filmroom-agent/internal/media"
	"github.com/filmroom/filmroom-agent/internal/store"
)

// VideoPayload is one manifest entry.
type VideoPayload struct {
	VideoID      string `json:"video_id"`
	URL          string `json:"url"`
	LocalPath    string `json:"local_path,omitempty"`
	Name         string `json:"name"`
	DurationMs   int64  `json:"duration_ms"`
	CameraOrder  int    `json:"camera_order"`
	CameraLabel  string `json:"camera_label,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Rejected explains why one manifest entry was not ingested.
type Rejected struct {
	VideoID string `json:"video_id"`
	Reason  string `json:"reason"`
}

// Result summarises one ingest call. Entries are independent: a bad
// entry never blocks the rest of the manifest.
type Result struct {
	Accepted int        `json:"accepted"`
	Rejected []Rejected `json:"rejected,omitempty"`
}

type Service struct {
	repo   store.Repository
	editor *editor.Service
	prober media.Prober
	logger *slog.Logger
}

func NewService(repo store.Repository, ed *editor.Service, prober media.Prober, logger *slog.Logger) *Service {
	return &Service{repo: repo, editor: ed, prober: prober, logger: logger}
}

// IngestVideos validates and upserts the manifest entries, creating any
// missing camera lanes. Entries with an unknown duration are probed when
// a local file is available; without either, the entry is rejected since
// clips cannot be cut from a video of unknown length.
func (s *Service) IngestVideos(ctx context.Context, payloads []VideoPayload) (*Result, error) {
	res := &Result{}

	for _, p := range payloads {
		if reason := s.validate(p); reason != "" {
			res.Rejected = append(res.Rejected, Rejected{VideoID: p.VideoID, Reason: reason})
			continue
		}

		durationMs := p.DurationMs
		if durationMs == 0 {
			info, err := s.prober.Probe(ctx, p.LocalPath)
			if err != nil {
				s.logger.Warn("duration probe failed", "video_id", p.VideoID, "error", err)
				res.Rejected = append(res.Rejected, Rejected{
					VideoID: p.VideoID,
					Reason:  fmt.Sprintf("unknown duration and probe failed: %v", err),
				})
				continue
			}
			durationMs = info.DurationMs
		}

		if err := s.editor.EnsureLane(ctx, p.CameraOrder, p.CameraLabel); err != nil {
			return res, fmt.Errorf("ensure lane %d: %w", p.CameraOrder, err)
		}

		err := s.repo.UpsertVideo(ctx, &store.Video{
			ID:           p.VideoID,
			URL:          p.URL,
			LocalPath:    p.LocalPath,
			Name:         p.Name,
			DurationMs:   durationMs,
			CameraOrder:  p.CameraOrder,
			CameraLabel:  p.CameraLabel,
			ThumbnailURL: p.ThumbnailURL,
			CreatedAt:    time.Now(),
		})
		if err != nil {
			return res, fmt.Errorf("upsert video %s: %w", p.VideoID, err)
		}

		s.logger.Info("video ingested",
			"video_id", p.VideoID, "lane", p.CameraOrder, "duration_ms", durationMs)
		res.Accepted++
	}

	return res, nil
}

func (s *Service) validate(p VideoPayload) string {
	switch {
	case p.VideoID == "":
		return "missing video_id"
	case p.URL == "" && p.LocalPath == "":
		return "missing url and local_path"
	case p.CameraOrder < 1:
		return "camera_order must be >= 1"
	case p.DurationMs < 0:
		return "negative duration_ms"
	case p.DurationMs == 0 && p.LocalPath == "":
		return "unknown duration and no local file to probe"
	}
	return ""
}
