package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/filmroom/filmroom-agent/internal/editor"
)

type Tray struct {
	editor *editor.Service
	saver  *editor.Saver
	logger *slog.Logger

	statusItem  *systray.MenuItem
	pendingItem *systray.MenuItem
	pauseItem   *systray.MenuItem

	mu sync.Mutex

	onQuit func()
	stopCh chan struct{}
}

type TrayConfig struct {
	Editor *editor.Service
	Saver  *editor.Saver
	Logger *slog.Logger
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		editor: cfg.Editor,
		saver:  cfg.Saver,
		logger: cfg.Logger,
		onQuit: cfg.OnQuit,
		stopCh: make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Filmroom")
	systray.SetTooltip("Filmroom Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.pendingItem = systray.AddMenuItem("Pending saves: 0", "Clip edits waiting to persist")
	t.pendingItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause syncing", "Pause clip persistence")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Filmroom Agent")

	refresh := time.NewTicker(2 * time.Second)

	go func() {
		defer refresh.Stop()
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-refresh.C:
				t.refreshPending()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.stopCh:
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.saver == nil {
		return
	}

	if t.saver.IsPaused() {
		t.saver.Resume()
		t.pauseItem.SetTitle("Pause syncing")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.saver.Pause()
		t.pauseItem.SetTitle("Resume syncing")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) refreshPending() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.editor == nil || t.pendingItem == nil {
		return
	}
	t.pendingItem.SetTitle(fmt.Sprintf("Pending saves: %d", len(t.editor.PendingSaves())))
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.saver != nil && t.saver.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) Quit() {
	close(t.stopCh)
}
