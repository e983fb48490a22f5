package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"

	"github.com/ivlev/shotplayer/internal/catalog"
)

type layout struct {
	Dir         string
	Departments []string
	Shots       int
	Frames      int
	FirstFrame  int
	Width       int
	Height      int
	DropEvery   int // skip writing every Nth frame, 0 keeps all
	Audio       string
}

var departmentColors = []color.RGBA{
	{R: 32, G: 48, B: 96, A: 255},
	{R: 96, G: 40, B: 32, A: 255},
	{R: 32, G: 88, B: 48, A: 255},
	{R: 80, G: 72, B: 24, A: 255},
}

// writeSequence renders every frame of the synthetic episode and returns the
// matching catalog. Frame files live under <dir>/<department>/<shot>/.
func writeSequence(l layout) (*catalog.Catalog, int, error) {
	var shots []catalog.Shot
	written := 0
	n := 0
	for di, dept := range l.Departments {
		bg := departmentColors[di%len(departmentColors)]
		for s := 1; s <= l.Shots; s++ {
			id := fmt.Sprintf("sh%03d", s*10)
			dir := filepath.Join(l.Dir, dept, id)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, written, err
			}
			tmpl := filepath.Join(dir, id+"."+catalog.Placeholder+".png")
			last := l.FirstFrame + l.Frames - 1
			for f := l.FirstFrame; f <= last; f++ {
				n++
				if l.DropEvery > 0 && n%l.DropEvery == 0 {
					continue
				}
				label := fmt.Sprintf("%s/%s/%04d", dept, id, f)
				img, err := renderFrame(label, l.Width, l.Height, bg, f-l.FirstFrame, l.Frames)
				if err != nil {
					return nil, written, fmt.Errorf("frame %s: %w", label, err)
				}
				if err := savePNG(catalog.FramePath(tmpl, f), img); err != nil {
					return nil, written, err
				}
				written++
			}
			shots = append(shots, catalog.Shot{
				ID:           id,
				Department:   dept,
				PathTemplate: tmpl,
				StartFrame:   l.FirstFrame,
				EndFrame:     last,
			})
		}
	}
	cat, err := catalog.New(shots, l.Audio)
	return cat, written, err
}

// renderFrame draws a QR code of label on a department-coloured canvas with a
// progress bar along the bottom edge.
func renderFrame(label string, w, h int, bg color.RGBA, pos, total int) (*image.RGBA, error) {
	q, err := qrcode.New(label, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	side := min(w, h) * 3 / 4
	code := q.Image(256)
	x0 := (w - side) / 2
	y0 := (h - side) / 2
	draw.NearestNeighbor.Scale(canvas, image.Rect(x0, y0, x0+side, y0+side), code, code.Bounds(), draw.Src, nil)

	barH := max(h/40, 2)
	barW := w * (pos + 1) / max(total, 1)
	draw.Draw(canvas, image.Rect(0, h-barH, barW, h), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return canvas, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
