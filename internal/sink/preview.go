// Package sink holds Frame Sink implementations for the playback engine.
package sink

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/ivlev/shotplayer/internal/engine"
	"github.com/ivlev/shotplayer/internal/prefetch"
	"github.com/ivlev/shotplayer/internal/system"
)

var ErrNoFrame = errors.New("no frame delivered yet")

var (
	_ engine.Sink = (*Preview)(nil)
	_ engine.Sink = Discard{}
)

// Preview retains the latest delivered frame. Show only swaps a reference so it
// stays far inside the frame budget; scaling and JPEG encoding happen when a
// snapshot is requested.
type Preview struct {
	width   int
	height  int
	quality int
	scaler  draw.Scaler
	pool    *system.ImagePool

	mu    sync.RWMutex
	frame prefetch.Frame
	shown atomic.Uint64
}

// NewPreview fits snapshots into width x height. Zero sizes keep the source size.
func NewPreview(width, height, quality int) *Preview {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Preview{
		width:   width,
		height:  height,
		quality: quality,
		scaler:  draw.CatmullRom,
		pool:    system.NewImagePool(),
	}
}

func (p *Preview) Show(f prefetch.Frame) {
	p.mu.Lock()
	p.frame = f
	p.mu.Unlock()
	p.shown.Add(1)
}

// Shown is the number of frames delivered so far.
func (p *Preview) Shown() uint64 {
	return p.shown.Load()
}

// Latest returns the last delivered frame.
func (p *Preview) Latest() (prefetch.Frame, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame, p.frame.Image != nil
}

// Snapshot encodes the latest frame as JPEG, scaled to fit the preview box.
func (p *Preview) Snapshot() ([]byte, int, error) {
	f, ok := p.Latest()
	if !ok {
		return nil, 0, ErrNoFrame
	}

	src := f.Image.Bounds()
	dst := fitRect(src.Dx(), src.Dy(), p.width, p.height)
	buf := p.pool.Get(dst)
	defer p.pool.Put(buf)
	p.scaler.Scale(buf, dst, f.Image, src, draw.Src, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, buf, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, f.Index, err
	}
	return out.Bytes(), f.Index, nil
}

// fitRect scales w x h to fit inside maxW x maxH keeping the aspect ratio.
func fitRect(w, h, maxW, maxH int) image.Rectangle {
	if maxW <= 0 || maxH <= 0 || w <= 0 || h <= 0 {
		return image.Rect(0, 0, max(w, 1), max(h, 1))
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw := max(int(float64(w)*scale), 1)
	fh := max(int(float64(h)*scale), 1)
	return image.Rect(0, 0, fw, fh)
}

// Discard drops every frame. Headless runs without a preview endpoint use it.
type Discard struct{}

func (Discard) Show(prefetch.Frame) {}
