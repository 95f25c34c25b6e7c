package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filmroom/filmroom-agent/internal/api"
	"github.com/filmroom/filmroom-agent/internal/config"
	"github.com/filmroom/filmroom-agent/internal/db"
	"github.com/filmroom/filmroom-agent/internal/editor"
	"github.com/filmroom/filmroom-agent/internal/ingest"
	"github.com/filmroom/filmroom-agent/internal/logging"
	"github.com/filmroom/filmroom-agent/internal/media"
	"github.com/filmroom/filmroom-agent/internal/playback"
	"github.com/filmroom/filmroom-agent/internal/player"
	"github.com/filmroom/filmroom-agent/internal/remote"
	"github.com/filmroom/filmroom-agent/internal/store"
	"github.com/filmroom/filmroom-agent/internal/ui"
	"github.com/filmroom/filmroom-agent/internal/watcher"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting filmroom agent", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   FILMROOM AGENT v0.1.0                   ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	var remoteClient remote.Client
	if cfg.RemoteEnabled() {
		httpClient := remote.NewHTTPClient(cfg.RemoteBaseURL(), cfg.RemoteToken(), cfg.RemoteOrgSlug(), logger)
		httpClient.SetDeviceID(deviceID)
		remoteClient = httpClient
		logger.Info("remote persistence enabled", "base_url", cfg.RemoteBaseURL(), "org_slug", cfg.RemoteOrgSlug())
	} else {
		remoteClient = remote.NewStubClient(logger)
		logger.Info("remote persistence disabled, saving locally only")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tl, err := store.LoadTimeline(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	saver := editor.NewSaver(repo, remoteClient, logger)
	go saver.Start(ctx)

	editorSvc := editor.NewService(tl, repo, saver, logger)

	proberCfg := media.DefaultConfig(logger)
	if cfg.FFProbePath() != "" {
		proberCfg.FFProbePath = cfg.FFProbePath()
	}
	prober := media.NewProber(proberCfg)
	tools := media.NewCachedTools(logger)

	ingestSvc := ingest.NewService(repo, editorSvc, prober, logger)

	// The browser plays local files through the agent's own playback
	// endpoint; cloud-hosted videos stream from their CDN URL directly.
	resolveStream := func(videoID string) (string, error) {
		video, err := repo.GetVideo(ctx, videoID)
		if err != nil || video == nil {
			return "", fmt.Errorf("unknown video %s", videoID)
		}
		if video.LocalPath != "" {
			return fmt.Sprintf("http://127.0.0.1:%d/playback/file?video_id=%s", cfg.Port(), videoID), nil
		}
		if video.URL != "" {
			return video.URL, nil
		}
		return "", fmt.Errorf("video %s has no playable source", videoID)
	}

	playerSvc := player.New(player.NewTickerPipeline(), player.NewTickerPipeline(), resolveStream, logger)
	defer playerSvc.Close()

	if cfg.WatchDir() != "" {
		importer := watcher.NewImporter(ingestSvc, editorSvc, logger)
		uploads := watcher.NewPollWatcher(logger)
		uploads.OnFile(func(path string) {
			importer.HandleFile(ctx, path)
		})
		if err := uploads.Watch(ctx, cfg.WatchDir()); err != nil {
			logger.Warn("upload watcher unavailable", "dir", cfg.WatchDir(), "error", err)
		} else {
			defer uploads.Stop()
			logger.Info("watching uploads folder", "dir", cfg.WatchDir())
		}
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Editor:     editorSvc,
		Saver:      saver,
		Ingest:     ingestSvc,
		Player:     playerSvc,
		Playback:   playback.NewServer(repo, logger),
		Repository: repo,
		Tools:      tools,
		Logger:     logger,
		StartTime:  startTime,
		DeviceID:   deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Editor: editorSvc,
			Saver:  saver,
			Logger: logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	// Give queued clip saves a chance to land before the process exits.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	saver.Drain(drainCtx)
	drainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureDeviceID(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
