// Package prefetch decodes frames ahead of the playhead into a bounded queue.
//
// One goroutine per Prefetcher walks the locator list from a start offset and
// blocks when the queue is full. Locators that fail to load are logged and
// skipped. A Prefetcher is never repositioned: callers Stop it and build a new
// one at the new offset.
package prefetch

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ivlev/shotplayer/internal/source"
)

// DefaultTimeout is the consumer-side wait used by the scheduler.
const DefaultTimeout = time.Second

// Frame is a decoded image tagged with its global index.
type Frame struct {
	Index int
	Path  string
	Image image.Image
}

// Stats is a snapshot of producer counters.
type Stats struct {
	Loaded  uint64
	Missing uint64
	Queued  int
}

type Prefetcher struct {
	frames chan Frame
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger

	loaded  atomic.Uint64
	missing atomic.Uint64
}

// New starts the producer at paths[start]. capacity below 1 is raised to 1.
func New(ctx context.Context, loader source.Loader, paths []string, capacity, start int, logger *slog.Logger) *Prefetcher {
	if capacity < 1 {
		capacity = 1
	}
	if start < 0 {
		start = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Prefetcher{
		frames: make(chan Frame, capacity),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}
	go p.run(ctx, loader, paths, start)
	return p
}

func (p *Prefetcher) run(ctx context.Context, loader source.Loader, paths []string, start int) {
	defer close(p.done)
	defer close(p.frames)

	for i := start; i < len(paths); i++ {
		if ctx.Err() != nil {
			return
		}
		img, err := loader.Load(paths[i])
		if err != nil || img == nil {
			p.missing.Add(1)
			p.logger.Warn("frame missing, skipped", "index", i, "path", paths[i], "error", err)
			continue
		}
		p.loaded.Add(1)

		select {
		case p.frames <- Frame{Index: i, Path: paths[i], Image: img}:
		case <-ctx.Done():
			return
		}
	}
}

// GetImage waits up to timeout for the next decoded frame. ok is false on
// timeout, after the producer finished, or after Stop.
func (p *Prefetcher) GetImage(timeout time.Duration) (Frame, bool) {
	select {
	case f, ok := <-p.frames:
		return f, ok
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f, ok := <-p.frames:
		return f, ok
	case <-timer.C:
		return Frame{}, false
	}
}

// Stop cancels the producer and waits for it to exit. Safe to call repeatedly.
func (p *Prefetcher) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

func (p *Prefetcher) Stats() Stats {
	return Stats{
		Loaded:  p.loaded.Load(),
		Missing: p.missing.Load(),
		Queued:  len(p.frames),
	}
}
