// Package tray shows the resident app in the system tray.
package tray

import (
	"fmt"
	"strings"
	"sync"

	"github.com/getlantern/systray"
	"pkt.systems/pslog"

	"bubble-overlay/src/hotkey"
	"bubble-overlay/src/logutil"
)

type Config struct {
	Title string
	// Chords feed the tooltip, e.g. "Shift + E".
	Chords   map[hotkey.Action]hotkey.Chord
	OnAction func(hotkey.Action)
	OnExit   func()
	Logger   pslog.Logger
}

// Tray owns the systray menu. Run must be called from the main goroutine.
type Tray struct {
	cfg Config

	mu      sync.Mutex
	ready   bool
	running bool
	start   *systray.MenuItem
	stop    *systray.MenuItem
}

func New(cfg Config) *Tray {
	if cfg.Title == "" {
		cfg.Title = "Bubble Overlay"
	}
	if cfg.Logger == nil {
		cfg.Logger = logutil.Discard()
	}
	return &Tray{cfg: cfg}
}

// Run blocks until Quit is called or the user picks Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) Quit() { systray.Quit() }

// SetRunning updates the icon, tooltip and menu for the session state.
// Safe from any goroutine.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	t.running = running
	ready := t.ready
	t.mu.Unlock()
	if ready {
		t.apply(running)
	}
}

func (t *Tray) onReady() {
	systray.SetTitle(t.cfg.Title)
	t.start = systray.AddMenuItem("Start translation", "Select a region and start translating it")
	t.stop = systray.AddMenuItem("Stop translation", "Stop the running translation")
	snip := systray.AddMenuItem("Snip", "Translate a region once")
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit the application")

	t.mu.Lock()
	t.ready = true
	running := t.running
	t.mu.Unlock()
	t.apply(running)

	go func() {
		for {
			select {
			case <-t.start.ClickedCh:
				t.post(hotkey.ActionStart)
			case <-t.stop.ClickedCh:
				t.post(hotkey.ActionStop)
			case <-snip.ClickedCh:
				t.post(hotkey.ActionSnip)
			case <-quit.ClickedCh:
				t.cfg.Logger.Info("quit requested from tray")
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

func (t *Tray) post(a hotkey.Action) {
	if t.cfg.OnAction != nil {
		t.cfg.OnAction(a)
	}
}

func (t *Tray) apply(running bool) {
	systray.SetIcon(Icon(running))
	systray.SetTooltip(Tooltip(t.cfg.Title, running, t.cfg.Chords))
	if running {
		t.stop.Enable()
	} else {
		t.stop.Disable()
	}
}

// Tooltip describes the state and the chords that change it.
func Tooltip(title string, running bool, chords map[hotkey.Action]hotkey.Chord) string {
	var b strings.Builder
	b.WriteString(title)
	if running {
		b.WriteString(" - translating")
		if c, ok := chords[hotkey.ActionStop]; ok {
			fmt.Fprintf(&b, "\nStop: %s", c)
		}
		return b.String()
	}
	if c, ok := chords[hotkey.ActionStart]; ok {
		fmt.Fprintf(&b, "\nStart: %s", c)
	}
	if c, ok := chords[hotkey.ActionSnip]; ok {
		fmt.Fprintf(&b, "\nSnip: %s", c)
	}
	return b.String()
}
