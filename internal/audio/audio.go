// Package audio holds the soundtrack transport driven by the playback scheduler.
package audio

import (
	"errors"
	"log/slog"
	"sync"
)

var ErrNotLoaded = errors.New("audio not loaded")

// Clock is the audio transport contract. The scheduler is its only caller
// during a session and keeps its position pinned to index/fps.
type Clock interface {
	Load(path string) error
	Play(offsetSeconds float64) error
	Stop()
	Pause()
	Unpause()
	IsInitialized() bool
}

// Nop is used when no soundtrack is configured.
type Nop struct{}

func (Nop) Load(string) error { return nil }
func (Nop) Play(float64) error { return nil }
func (Nop) Stop() {}
func (Nop) Pause() {}
func (Nop) Unpause() {}
func (Nop) IsInitialized() bool { return false }

// Guard wraps a Clock for one session. The first Load or Play failure is logged
// and disables audio until the session ends; video keeps playing. With an empty
// path every call is a no-op.
type Guard struct {
	clock    Clock
	path     string
	logger   *slog.Logger
	mu       sync.Mutex
	disabled bool
	loaded   bool
}

func NewGuard(clock Clock, path string, logger *slog.Logger) *Guard {
	if clock == nil {
		clock = Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{clock: clock, path: path, logger: logger, disabled: path == ""}
}

// Enabled reports whether audio is still active for the session.
func (g *Guard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.disabled
}

// Start loads the track on first use and plays from offsetSeconds. Later calls
// reposition the transport.
func (g *Guard) Start(offsetSeconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disabled {
		return
	}
	if !g.loaded {
		g.clock.Stop()
		if err := g.clock.Load(g.path); err != nil {
			g.disableLocked("load", err)
			return
		}
		g.loaded = true
	}
	if err := g.clock.Play(offsetSeconds); err != nil {
		g.disableLocked("play", err)
	}
}

// Seek repositions the transport; it is Start with a loaded track.
func (g *Guard) Seek(offsetSeconds float64) {
	g.Start(offsetSeconds)
}

func (g *Guard) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.disabled && g.clock.IsInitialized() {
		g.clock.Pause()
	}
}

func (g *Guard) Unpause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.disabled && g.clock.IsInitialized() {
		g.clock.Unpause()
	}
}

// Stop halts the transport. It runs even after a failure so a half-started
// player process is not left behind.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path == "" {
		return
	}
	g.clock.Stop()
}

func (g *Guard) disableLocked(op string, err error) {
	g.disabled = true
	g.logger.Error("audio disabled for session", "op", op, "path", g.path, "error", err)
}
