// Package review is the reviewer-facing controller: it owns the transport
// flags and command mailbox of the playback engine and turns reviewer actions
// (play, pause, stop, shot selection, mode, department and loop toggles) into
// sessions and commands. It has no widgets; HTTP and MQTT front ends drive it.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ivlev/shotplayer/internal/audio"
	"github.com/ivlev/shotplayer/internal/catalog"
	"github.com/ivlev/shotplayer/internal/command"
	"github.com/ivlev/shotplayer/internal/engine"
	"github.com/ivlev/shotplayer/internal/source"
)

var (
	ErrNoShot            = errors.New("no shot selected")
	ErrNotPlaying        = errors.New("playback not running")
	ErrPlaying           = errors.New("playback running")
	ErrUnknownShot       = errors.New("unknown shot")
	ErrUnknownDepartment = errors.New("unknown department")
)

type Mode int

const (
	Episode Mode = iota
	Scene
)

func (m Mode) String() string {
	if m == Scene {
		return "scene"
	}
	return "episode"
}

type Options struct {
	Department        string
	FPS               int
	MaxCacheSize      int
	StartIndex        int
	AudioOffsetFrames *int
	Loop              bool
	SceneMode         bool
}

// Session is what the controller knows about a finished playback run.
type Session struct {
	ID         string
	Department string
	Mode       Mode
	Report     engine.Report
	Err        error
}

type Option func(*Controller)

func WithAudio(c audio.Clock) Option { return func(ct *Controller) { ct.audio = c } }
func WithSink(s engine.Sink) Option { return func(ct *Controller) { ct.sink = s } }
func WithLogger(l *slog.Logger) Option { return func(ct *Controller) { ct.logger = l } }

// WithSessionFunc registers a callback run after every session ends.
func WithSessionFunc(fn func(Session)) Option {
	return func(ct *Controller) { ct.onSession = fn }
}

// WithEngineOptions adjusts the scheduler options of every session.
func WithEngineOptions(fn func(*engine.Options)) Option {
	return func(ct *Controller) { ct.tune = fn }
}

type Controller struct {
	cat       *catalog.Catalog
	loader    source.Loader
	audio     audio.Clock
	sink      engine.Sink
	logger    *slog.Logger
	onSession func(Session)
	tune      func(*engine.Options)

	commands  *command.Mailbox
	transport *engine.Transport

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	opts        Options
	department  string
	playlist    *catalog.Playlist
	paths       []string
	mode        Mode
	loop        bool
	shot        int // position in playlist, -1 when none
	resume      int // global in Episode mode, shot-local in Scene mode
	audioOffset *int
	playing     bool
	done        chan struct{}
	sessionID   string
	frame       frameCounter
	last        *Session
}

type frameCounter struct {
	index int
	total int
	fps   float64
}

// New builds a controller for cat starting in opts.Department. An unknown or
// empty department falls back to the first one in the catalog.
func New(cat *catalog.Catalog, loader source.Loader, opts Options, options ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cat:         cat,
		loader:      loader,
		commands:    command.NewMailbox(),
		transport:   engine.NewTransport(),
		ctx:         ctx,
		cancel:      cancel,
		opts:        opts,
		loop:        opts.Loop,
		shot:        -1,
		audioOffset: opts.AudioOffsetFrames,
	}
	for _, o := range options {
		o(c)
	}
	if c.audio == nil {
		c.audio = audio.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	dept := opts.Department
	if !c.hasDepartment(dept) {
		if depts := cat.Departments(); len(depts) > 0 {
			if dept != "" {
				c.logger.Warn("department not in shot list, using first", "requested", dept, "department", depts[0])
			}
			dept = depts[0]
		}
	}
	c.setDepartmentLocked(dept)

	if opts.SceneMode {
		c.mode = Scene
		if c.playlist.Len() > 0 {
			c.shot, _ = c.playlist.ShotAt(c.playlist.Clamp(opts.StartIndex))
		}
	}
	if c.playlist.Total() > 0 {
		g := c.playlist.Clamp(opts.StartIndex)
		c.resume = c.fromGlobalLocked(g)
	}
	return c
}

func (c *Controller) hasDepartment(d string) bool {
	for _, x := range c.cat.Departments() {
		if x == d {
			return true
		}
	}
	return false
}

func (c *Controller) setDepartmentLocked(d string) {
	c.department = d
	c.playlist = c.cat.Playlist(d)
	c.paths = catalog.ResolvePaths(c.playlist)
	c.shot = -1
	c.resume = 0
	c.frame = frameCounter{total: c.playlist.Total()}
}

func (c *Controller) Departments() []string {
	return c.cat.Departments()
}

func (c *Controller) Department() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.department
}

// Shots lists the current department's shots with their global offsets.
func (c *Controller) Shots() []catalog.Shot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playlist.Shots()
}

// SetDepartment switches the playlist. Shot indexes and seeks of a running
// session belong to its department, so the switch needs a stopped controller.
func (c *Controller) SetDepartment(d string) error {
	if !c.hasDepartment(d) {
		return fmt.Errorf("%w: %q", ErrUnknownDepartment, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == c.department {
		return nil
	}
	return c.switchLocked(d)
}

// ToggleDepartment moves to the next department in first-seen order.
func (c *Controller) ToggleDepartment() (string, error) {
	depts := c.cat.Departments()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(depts) < 2 {
		return c.department, nil
	}
	next := depts[0]
	for i, d := range depts {
		if d == c.department {
			next = depts[(i+1)%len(depts)]
			break
		}
	}
	if err := c.switchLocked(next); err != nil {
		return c.department, err
	}
	return next, nil
}

func (c *Controller) switchLocked(d string) error {
	if c.playing {
		return fmt.Errorf("%w: stop %s before switching to %s", ErrPlaying, c.department, d)
	}
	c.setDepartmentLocked(d)
	c.logger.Info("department switched", "department", d, "frames", c.playlist.Total())
	return nil
}

// SelectShot points the controller at a shot. While playing this is applied
// through the mailbox: a seek in Episode mode, a trim to the shot in Scene mode.
func (c *Controller) SelectShot(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.playlist.Find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownShot, id)
	}
	s := c.playlist.Shot(i)
	c.shot = i
	if c.mode == Episode {
		c.resume = s.AbsoluteStart
		if c.playing {
			c.commands.Put(command.NewSeek(s.AbsoluteStart))
		}
		return nil
	}
	c.resume = 0
	if c.playing {
		c.commands.Put(command.NewTrim(s.AbsoluteStart, s.AbsoluteEnd()))
	}
	return nil
}

// ToggleMode flips between Episode and Scene and converts the resume index.
func (c *Controller) ToggleMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == Episode {
		if c.playlist.Total() > 0 {
			g := c.playlist.Clamp(c.resume)
			c.shot, _ = c.playlist.ShotAt(g)
		}
		c.mode = Scene
	} else {
		c.mode = Episode
	}
	if c.shot < 0 {
		c.resume = 0
	} else if c.mode == Episode {
		c.resume = c.playlist.Shot(c.shot).AbsoluteStart + c.resume
	} else {
		s := c.playlist.Shot(c.shot)
		c.resume = clamp(c.resume-s.AbsoluteStart, 0, s.Len()-1)
	}

	if c.playing {
		c.enqueueRangeLocked()
	}
	c.logger.Info("mode switched", "mode", c.mode, "resume", c.resume)
	return c.mode
}

func (c *Controller) ToggleLoop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loop = !c.loop
	if c.playing {
		c.commands.Put(command.NewLoop(c.loop))
	}
	return c.loop
}

// Send forwards a raw transport command. Seek and Loop are remembered while
// idle; Trim and TrimOff need a running session.
func (c *Controller) Send(cmd command.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		if cmd.Kind == command.Loop {
			c.loop = cmd.Enabled
		}
		c.commands.Put(cmd)
		return nil
	}
	switch cmd.Kind {
	case command.Seek:
		if c.playlist.Total() == 0 {
			return catalog.ErrEmptyPlaylist
		}
		g := c.playlist.Clamp(cmd.Index)
		if c.mode == Scene {
			c.shot, _ = c.playlist.ShotAt(g)
		}
		c.resume = c.fromGlobalLocked(g)
		return nil
	case command.Loop:
		c.loop = cmd.Enabled
		return nil
	}
	return ErrNotPlaying
}

// Play starts a session from the resume index, or resumes a paused one.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		c.transport.Resume()
		return nil
	}
	if c.playlist.Total() == 0 {
		return catalog.ErrEmptyPlaylist
	}
	if c.mode == Scene && c.shot < 0 {
		return ErrNoShot
	}

	if n := c.commands.Clear(); n > 0 {
		c.logger.Debug("stale commands dropped", "count", n)
	}
	c.transport.Reset()
	start := c.toGlobalLocked(c.resume)

	c.playing = true
	c.done = make(chan struct{})
	go c.run(start, c.done)
	return nil
}

// Pause holds a running session.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.transport.Pause()
	}
}

// Stop ends the session, waits for the scheduler to release its resources and
// rewinds to the start of the current mode.
func (c *Controller) Stop() {
	c.mu.Lock()
	done := c.done
	if c.playing {
		c.transport.Stop()
	}
	c.commands.Clear()
	c.mu.Unlock()

	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.resume = 0
	c.frame.index = 0
	c.mu.Unlock()
}

// Wait blocks until the current session, including loop restarts, is over.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close stops playback and cancels the controller context.
func (c *Controller) Close() {
	c.Stop()
	c.cancel()
}

// enqueueRangeLocked retargets a running session to the mode's range. The
// trim already lands on the shot start, so a seek follows only for a later frame.
func (c *Controller) enqueueRangeLocked() {
	if c.mode == Episode {
		c.commands.Put(command.NewTrimOff())
		return
	}
	r := c.rangeLocked()
	if r == nil {
		return
	}
	c.commands.Put(command.NewTrim(r.Start, r.End))
	if c.resume > 0 {
		c.commands.Put(command.NewSeek(r.Start + c.resume))
	}
}

// rangeLocked is the trim range of the current mode, nil in Episode mode.
func (c *Controller) rangeLocked() *engine.Range {
	if c.mode != Scene || c.shot < 0 {
		return nil
	}
	s := c.playlist.Shot(c.shot)
	return &engine.Range{Start: s.AbsoluteStart, End: s.AbsoluteEnd()}
}

func (c *Controller) toGlobalLocked(resume int) int {
	if c.mode == Scene && c.shot >= 0 {
		resume += c.playlist.Shot(c.shot).AbsoluteStart
	}
	return c.playlist.Clamp(resume)
}

func (c *Controller) fromGlobalLocked(g int) int {
	if c.mode == Scene && c.shot >= 0 {
		s := c.playlist.Shot(c.shot)
		return clamp(g-s.AbsoluteStart, 0, s.Len()-1)
	}
	return g
}

// run drives sessions until stop, failure or a natural end without loop.
func (c *Controller) run(start int, done chan struct{}) {
	defer close(done)

	for {
		c.mu.Lock()
		id := uuid.NewString()
		c.sessionID = id
		opts := engine.Options{
			FPS:               c.opts.FPS,
			MaxCacheSize:      c.opts.MaxCacheSize,
			StartIndex:        start,
			AudioPath:         c.cat.AudioPath(),
			AudioOffsetFrames: c.audioOffset,
			Loop:              c.loop,
			Trim:              c.rangeLocked(),
		}
		c.audioOffset = nil
		paths := c.paths
		dept := c.department
		mode := c.mode
		c.mu.Unlock()

		if c.tune != nil {
			c.tune(&opts)
		}
		sched := engine.New(paths, c.loader, opts,
			engine.WithSink(c.sink),
			engine.WithOnFrame(c.onFrame),
			engine.WithControls(c.transport),
			engine.WithCommands(c.commands),
			engine.WithAudio(c.audio),
			engine.WithLogger(c.logger.With("session", id)),
		)
		rep, err := sched.Run(c.ctx)

		sess := Session{ID: id, Department: dept, Mode: mode, Report: rep, Err: err}
		c.mu.Lock()
		c.last = &sess
		restart := err == nil && c.loop && !c.transport.Stopped() && c.ctx.Err() == nil &&
			(rep.Reason == engine.EndPlaylist || rep.Reason == engine.EndTrim)
		if restart {
			c.resume = 0
			start = c.toGlobalLocked(0)
		} else {
			c.playing = false
		}
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("session failed", "session", id, "error", err)
		}
		if c.onSession != nil {
			c.onSession(sess)
		}
		if !restart {
			return
		}
		c.logger.Info("loop restart", "start", start)
	}
}

// onFrame runs on the scheduler goroutine for every tick.
func (c *Controller) onFrame(current, total int, fps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frameCounter{index: current - 1, total: total, fps: fps}
	next := current
	if next > total-1 {
		next = total - 1
	}
	c.resume = c.fromGlobalLocked(next)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
