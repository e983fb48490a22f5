package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	files := []string{"ep01_v1.csv", "ep01_v2.CSV", "notes.txt", "ep01.yaml"}
	for i, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(path, mod, mod)
	}

	latest, err := FindLatestShotList(dir)
	if err != nil {
		t.Fatalf("FindLatestShotList failed: %v", err)
	}
	if filepath.Base(latest) != "ep01.yaml" {
		t.Errorf("Expected ep01.yaml, got %s", latest)
	}

	latestCSV, err := FindLatest(dir, []string{".csv"})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(latestCSV) != "ep01_v2.CSV" {
		t.Errorf("Expected ep01_v2.CSV, got %s", latestCSV)
	}

	if _, err := FindLatestAudio(dir); err == nil {
		t.Error("Expected error when no audio present")
	}
}

func TestCacheSizeFor(t *testing.T) {
	const frame = 8 << 20 // 8 MiB per decoded 2K RGBA frame
	tests := []struct {
		available uint64
		want      int
	}{
		{0, 10},
		{1 << 30, 32},
		{64 << 30, 1000},
	}
	for _, tt := range tests {
		if got := cacheSizeFor(tt.available, frame, 10, 1000); got != tt.want {
			t.Errorf("cacheSizeFor(%d) = %d, want %d", tt.available, got, tt.want)
		}
	}
}

func TestSuggestCacheSizeInRange(t *testing.T) {
	got := SuggestCacheSize(8<<20, 150, 10, 1000)
	if got < 10 || got > 1000 {
		t.Errorf("Suggestion %d outside [10, 1000]", got)
	}
	if got := SuggestCacheSize(0, 150, 10, 1000); got != 150 {
		t.Errorf("Expected default for zero frame size, got %d", got)
	}
}

func TestImagePoolReuse(t *testing.T) {
	p := NewImagePool()
	a := p.Get(image.Rect(0, 0, 64, 36))
	if a.Bounds().Dx() != 64 || a.Bounds().Dy() != 36 {
		t.Fatalf("Unexpected bounds %v", a.Bounds())
	}
	p.Put(a)

	b := p.Get(image.Rect(10, 10, 74, 46))
	if b.Bounds() != image.Rect(10, 10, 74, 46) {
		t.Errorf("Expected rebased bounds, got %v", b.Bounds())
	}
	b.Set(73, 45, image.White)

	p.Put(nil)
}
