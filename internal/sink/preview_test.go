package sink

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/ivlev/shotplayer/internal/prefetch"
)

func TestFitRect(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		maxW, maxH int
		want       image.Rectangle
	}{
		{"wide source", 1920, 1080, 960, 960, image.Rect(0, 0, 960, 540)},
		{"tall source", 1080, 1920, 960, 540, image.Rect(0, 0, 303, 540)},
		{"upscale", 100, 50, 400, 400, image.Rect(0, 0, 400, 200)},
		{"no box keeps size", 640, 360, 0, 0, image.Rect(0, 0, 640, 360)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fitRect(tt.w, tt.h, tt.maxW, tt.maxH); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPreviewSnapshot(t *testing.T) {
	p := NewPreview(100, 100, 90)
	if _, _, err := p.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Expected ErrNoFrame before any delivery, got %v", err)
	}

	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	p.Show(prefetch.Frame{Index: 7, Path: "/a/s1.0008.png", Image: src})

	data, idx, err := p.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if idx != 7 {
		t.Errorf("Expected index 7, got %d", idx)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Snapshot is not a JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Errorf("Expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}
	if p.Shown() != 1 {
		t.Errorf("Expected one frame shown, got %d", p.Shown())
	}
}
