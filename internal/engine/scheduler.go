// Package engine runs the playback session: it paces frame delivery to the
// target rate, applies transport commands between ticks, keeps the audio clock
// aligned with the frame index and reports how the session went.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivlev/shotplayer/internal/audio"
	"github.com/ivlev/shotplayer/internal/catalog"
	"github.com/ivlev/shotplayer/internal/command"
	"github.com/ivlev/shotplayer/internal/prefetch"
	"github.com/ivlev/shotplayer/internal/source"
)

const defaultPausePoll = 50 * time.Millisecond

// Sink receives each delivered frame. Show runs on the scheduler goroutine and
// should return within one frame duration.
type Sink interface {
	Show(f prefetch.Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f prefetch.Frame)

func (fn SinkFunc) Show(f prefetch.Frame) { fn(f) }

// FrameFunc is called once per tick with the 1-based position, the playlist
// length and the live FPS over the recent window.
type FrameFunc func(current, total int, fps float64)

type Options struct {
	FPS          int
	MaxCacheSize int
	StartIndex   int
	AudioPath    string
	Loop         bool

	// AudioOffsetFrames overrides the initial audio position. Nil means StartIndex.
	AudioOffsetFrames *int

	// Trim confines playback from the first tick. Nil means the whole playlist.
	Trim *Range

	// PullTimeout bounds the wait for a decoded frame. Zero means prefetch.DefaultTimeout.
	PullTimeout time.Duration

	// PausePoll is the re-check interval while paused. Zero means 50ms.
	PausePoll time.Duration
}

// Range is an inclusive interval of global frame indexes.
type Range struct {
	Start, End int
}

type Option func(*Scheduler)

func WithSink(s Sink) Option { return func(sc *Scheduler) { sc.sink = s } }
func WithOnFrame(fn FrameFunc) Option { return func(sc *Scheduler) { sc.onFrame = fn } }
func WithControls(c Controls) Option { return func(sc *Scheduler) { sc.controls = c } }
func WithCommands(m *command.Mailbox) Option { return func(sc *Scheduler) { sc.commands = m } }
func WithAudio(c audio.Clock) Option { return func(sc *Scheduler) { sc.audio = c } }
func WithLogger(l *slog.Logger) Option { return func(sc *Scheduler) { sc.logger = l } }

// Scheduler plays a resolved locator list. One Scheduler runs one session at a
// time; Run may be called again after it returns.
type Scheduler struct {
	paths    []string
	loader   source.Loader
	opts     Options
	sink     Sink
	onFrame  FrameFunc
	controls Controls
	commands *command.Mailbox
	audio    audio.Clock
	logger   *slog.Logger
}

func New(paths []string, loader source.Loader, opts Options, options ...Option) *Scheduler {
	s := &Scheduler{
		paths:  paths,
		loader: loader,
		opts:   opts,
	}
	for _, o := range options {
		o(s)
	}
	if s.opts.PullTimeout <= 0 {
		s.opts.PullTimeout = prefetch.DefaultTimeout
	}
	if s.opts.PausePoll <= 0 {
		s.opts.PausePoll = defaultPausePoll
	}
	if s.opts.MaxCacheSize < 1 {
		s.opts.MaxCacheSize = 1
	}
	if s.sink == nil {
		s.sink = SinkFunc(func(prefetch.Frame) {})
	}
	if s.controls == nil {
		s.controls = NewTransport()
	}
	if s.commands == nil {
		s.commands = command.NewMailbox()
	}
	if s.audio == nil {
		s.audio = audio.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

type trimRange struct {
	active     bool
	start, end int
}

// newTrimRange clamps both bounds into the playlist and orders them.
func newTrimRange(a, b, total int) trimRange {
	a = catalog.ClampIndex(a, total)
	b = catalog.ClampIndex(b, total)
	if a > b {
		a, b = b, a
	}
	return trimRange{active: true, start: a, end: b}
}

// session is the state of one Run.
type session struct {
	ctx      context.Context
	index    int
	total    int
	frameDur time.Duration
	anchor   time.Time
	trim     trimRange
	loop     bool

	prefetch  *prefetch.Prefetcher
	pending   *prefetch.Frame
	missing   uint64
	retargets int
	audio     *audio.Guard
	tele      telemetry
}

// Run plays until the stop flag is set, the range is exhausted or ctx is done.
// The prefetcher and audio are released and the report computed on every exit
// path, including a panic in a collaborator, which is returned as an error.
func (s *Scheduler) Run(ctx context.Context) (rep Report, err error) {
	if s.opts.FPS <= 0 {
		return Report{}, fmt.Errorf("invalid fps %d", s.opts.FPS)
	}
	total := len(s.paths)
	if total == 0 {
		return Report{}, catalog.ErrEmptyPlaylist
	}

	start := catalog.ClampIndex(s.opts.StartIndex, total)
	if start != s.opts.StartIndex {
		s.logger.Warn("start index clamped", "requested", s.opts.StartIndex, "index", start, "total", total)
	}

	ss := &session{
		ctx:      ctx,
		total:    total,
		frameDur: time.Second / time.Duration(s.opts.FPS),
		loop:     s.opts.Loop,
		audio:    audio.NewGuard(s.audio, s.opts.AudioPath, s.logger),
	}
	if r := s.opts.Trim; r != nil {
		ss.trim = newTrimRange(r.Start, r.End, total)
		if start < ss.trim.start || start > ss.trim.end {
			start = ss.trim.start
		}
	}
	ss.index = start
	rep = Report{
		TargetFPS:  float64(s.opts.FPS),
		StartIndex: start,
		StartedAt:  time.Now(),
	}

	ss.prefetch = prefetch.New(ctx, s.loader, s.paths, s.opts.MaxCacheSize, start, s.logger)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("playback fault", "index", ss.index, "panic", r)
			err = fmt.Errorf("playback fault at index %d: %v", ss.index, r)
			rep.Reason = EndFault
		}
		ss.prefetch.Stop()
		ss.missing += ss.prefetch.Stats().Missing
		ss.audio.Stop()
		s.finish(ss, &rep)
	}()

	ss.audio.Start(s.initialAudioOffset(start))
	ss.anchor = time.Now().Add(-time.Duration(start) * ss.frameDur)

	s.logger.Info("playback started", "frames", total, "start", start, "fps", s.opts.FPS, "cache", s.opts.MaxCacheSize)
	rep.Reason = s.loop(ss, &rep)
	return rep, nil
}

// loop is the per-tick body; it returns why playback ended.
func (s *Scheduler) loop(ss *session, rep *Report) EndReason {
	for {
		if c, ok := s.commands.TryGet(); ok {
			s.apply(ss, c)
		}

		if s.controls.Stopped() {
			return EndStopped
		}
		if ss.ctx.Err() != nil {
			return EndCanceled
		}

		if s.controls.Paused() {
			s.waitWhilePaused(ss)
			if s.controls.Stopped() {
				return EndStopped
			}
			if ss.ctx.Err() != nil {
				return EndCanceled
			}
		}

		target := ss.anchor.Add(time.Duration(ss.index) * ss.frameDur)
		if !sleepUntil(ss.ctx, target) {
			return EndCanceled
		}

		rep.Ticks++
		if f, ok := s.pull(ss); ok {
			s.deliver(ss, f)
			rep.Delivered++
		} else {
			rep.Skipped++
		}
		fps := ss.tele.record(time.Now())
		if s.onFrame != nil {
			s.onFrame(ss.index+1, ss.total, fps)
		}
		rep.LastIndex = ss.index

		ss.index++

		if ss.trim.active {
			if ss.index > ss.trim.end {
				if !ss.loop {
					return EndTrim
				}
				s.logger.Debug("trim loop", "start", ss.trim.start, "end", ss.trim.end)
				s.retarget(ss, ss.trim.start)
			}
			continue
		}
		if ss.index >= ss.total {
			return EndPlaylist
		}
	}
}

func (s *Scheduler) apply(ss *session, c command.Command) {
	s.logger.Debug("command", "cmd", c.String(), "index", ss.index)
	switch c.Kind {
	case command.Seek:
		s.retarget(ss, c.Index)
	case command.Trim:
		ss.trim = newTrimRange(c.Start, c.End, ss.total)
		s.retarget(ss, ss.trim.start)
	case command.TrimOff:
		ss.trim = trimRange{}
	case command.Loop:
		ss.loop = c.Enabled
	default:
		s.logger.Warn("command ignored", "cmd", c.String())
	}
}

// retarget moves the playhead to k: a fresh prefetcher, a new anchor so that
// k is due now, and the audio clock repositioned to k/fps.
func (s *Scheduler) retarget(ss *session, k int) {
	if clamped := catalog.ClampIndex(k, ss.total); clamped != k {
		s.logger.Warn("seek index clamped", "requested", k, "index", clamped)
		k = clamped
	}
	ss.prefetch.Stop()
	ss.missing += ss.prefetch.Stats().Missing
	ss.pending = nil
	ss.prefetch = prefetch.New(ss.ctx, s.loader, s.paths, s.opts.MaxCacheSize, k, s.logger)
	ss.retargets++

	ss.index = k
	ss.anchor = time.Now().Add(-time.Duration(k) * ss.frameDur)
	ss.audio.Seek(float64(k) / float64(s.opts.FPS))
}

// pull returns the frame for the current index. A frame ahead of the index
// means the current one was missing; it is held for its own tick.
func (s *Scheduler) pull(ss *session) (prefetch.Frame, bool) {
	if p := ss.pending; p != nil {
		switch {
		case p.Index == ss.index:
			ss.pending = nil
			return *p, true
		case p.Index > ss.index:
			return prefetch.Frame{}, false
		}
		ss.pending = nil
	}
	for {
		f, ok := ss.prefetch.GetImage(s.opts.PullTimeout)
		if !ok {
			return prefetch.Frame{}, false
		}
		switch {
		case f.Index == ss.index:
			return f, true
		case f.Index > ss.index:
			ss.pending = &f
			return prefetch.Frame{}, false
		}
	}
}

func (s *Scheduler) deliver(ss *session, f prefetch.Frame) {
	begin := time.Now()
	s.sink.Show(f)
	if d := time.Since(begin); d > ss.frameDur {
		s.logger.Debug("slow sink", "index", f.Index, "took", d, "budget", ss.frameDur)
	}
}

// waitWhilePaused holds the audio, waits for resume, stop or cancellation and
// then shifts the anchor by the paused time so pacing continues from the same
// frame.
func (s *Scheduler) waitWhilePaused(ss *session) {
	began := time.Now()
	ss.audio.Pause()

	var wake <-chan struct{}
	if n, ok := s.controls.(interface{ Changed() <-chan struct{} }); ok {
		wake = n.Changed()
	}
	poll := time.NewTicker(s.opts.PausePoll)
	defer poll.Stop()

	for s.controls.Paused() && !s.controls.Stopped() && ss.ctx.Err() == nil {
		select {
		case <-wake:
		case <-poll.C:
		case <-ss.ctx.Done():
		}
	}

	d := time.Since(began)
	ss.anchor = ss.anchor.Add(d)
	ss.tele.addPause(d)
	s.logger.Debug("resumed", "paused", d, "index", ss.index)
	ss.audio.Unpause()
}

func (s *Scheduler) finish(ss *session, rep *Report) {
	rep.FinishedAt = time.Now()
	rep.Paused = ss.tele.paused + ss.tele.held
	rep.MissingFiles = ss.missing
	rep.Retargets = ss.retargets
	rep.Audio = ss.audio.Enabled()
	rep.AverageFPS, rep.FPSAvailable = ss.tele.average()
	rep.Underrun = rep.FPSAvailable && rep.AverageFPS < rep.TargetFPS-underrunMargin

	switch {
	case !rep.FPSAvailable:
		s.logger.Info("playback finished, average fps unavailable", "reason", rep.Reason, "ticks", rep.Ticks)
	case rep.Underrun:
		s.logger.Warn("playback underrun", "average_fps", rep.AverageFPS, "target", rep.TargetFPS, "reason", rep.Reason)
	default:
		s.logger.Info("playback finished", "average_fps", rep.AverageFPS, "target", rep.TargetFPS, "reason", rep.Reason)
	}
}

func (s *Scheduler) initialAudioOffset(start int) float64 {
	frames := start
	if s.opts.AudioOffsetFrames != nil {
		frames = *s.opts.AudioOffsetFrames
	}
	return float64(frames) / float64(s.opts.FPS)
}

// sleepUntil waits for t or ctx. It returns false if ctx ended first.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
