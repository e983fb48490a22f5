package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

const sampleCSV = `shot_id,reparto,frame_path,start_frame,end_frame
s1,animazione,/shots/s1/s1.####.png,1,3
audio,,path/audio.wav,,
s2,animazione,/shots/s2/s2.####.png,1,2
r1,render,/render/r1/r1.####.exr,101,104
`

func TestParseCSV(t *testing.T) {
	c, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV failed: %v", err)
	}
	if c.AudioPath() != "path/audio.wav" {
		t.Errorf("Expected audio path, got %q", c.AudioPath())
	}
	if len(c.Shots()) != 3 {
		t.Fatalf("Expected 3 shots, got %d", len(c.Shots()))
	}

	deps := c.Departments()
	if len(deps) != 2 || deps[0] != "animazione" || deps[1] != "render" {
		t.Errorf("Unexpected departments: %v", deps)
	}

	p := c.Playlist("animazione")
	if p.Len() != 2 {
		t.Fatalf("Expected 2 shots in playlist, got %d", p.Len())
	}
	if p.Shot(0).AbsoluteStart != 0 || p.Shot(1).AbsoluteStart != 3 {
		t.Errorf("Unexpected absolute starts: %d, %d", p.Shot(0).AbsoluteStart, p.Shot(1).AbsoluteStart)
	}
	if p.Total() != 5 {
		t.Errorf("Expected total 5, got %d", p.Total())
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing column", "shot_id,reparto,frame_path,start_frame\ns1,a,p,1\n"},
		{"bad start", "shot_id,reparto,frame_path,start_frame,end_frame\ns1,a,p,x,3\n"},
		{"empty end", "shot_id,reparto,frame_path,start_frame,end_frame\ns1,a,p,1,\n"},
		{"reversed", "shot_id,reparto,frame_path,start_frame,end_frame\ns1,a,p,5,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCSV(strings.NewReader(tt.data)); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	_, err := ParseCSV(strings.NewReader(tests[3].data))
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestAbsoluteStartIsPrefixSum(t *testing.T) {
	var shots []Shot
	for i := 0; i < 20; i++ {
		start := 1 + i*7
		shots = append(shots, Shot{ID: fmt.Sprintf("s%d", i), StartFrame: start, EndFrame: start + i%5})
	}
	p := NewPlaylist(shots)

	sum := 0
	for i := 0; i < p.Len(); i++ {
		s := p.Shot(i)
		if s.AbsoluteStart != sum {
			t.Errorf("Shot %d: expected absolute start %d, got %d", i, sum, s.AbsoluteStart)
		}
		sum += s.EndFrame - s.StartFrame + 1
	}
	if p.Total() != sum {
		t.Errorf("Expected total %d, got %d", sum, p.Total())
	}
}

func TestLocate(t *testing.T) {
	p := NewPlaylist([]Shot{
		{ID: "s1", StartFrame: 1, EndFrame: 3},
		{ID: "s2", StartFrame: 1, EndFrame: 2},
	})

	tests := []struct {
		g     int
		shot  string
		local int
		ok    bool
	}{
		{0, "s1", 1, true},
		{2, "s1", 3, true},
		{3, "s2", 1, true},
		{4, "s2", 2, true},
		{5, "", 0, false},
		{-1, "", 0, false},
	}
	for _, tt := range tests {
		s, local, ok := p.Locate(tt.g)
		if ok != tt.ok || s.ID != tt.shot || local != tt.local {
			t.Errorf("Locate(%d) = (%s, %d, %v), want (%s, %d, %v)", tt.g, s.ID, local, ok, tt.shot, tt.local, tt.ok)
		}
	}
}

func TestClamp(t *testing.T) {
	p := NewPlaylist([]Shot{{ID: "s1", StartFrame: 1, EndFrame: 3}, {ID: "s2", StartFrame: 1, EndFrame: 2}})
	for in, want := range map[int]int{-3: 0, 0: 0, 4: 4, 10: 4} {
		if got := p.Clamp(in); got != want {
			t.Errorf("Clamp(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestResolvePaths(t *testing.T) {
	p := NewPlaylist([]Shot{
		{ID: "s1", PathTemplate: "/a/s1.####.png", StartFrame: 7, EndFrame: 9},
		{ID: "s2", PathTemplate: "/b/####/s2_####.jpg", StartFrame: 1010, EndFrame: 1011},
	})
	paths := ResolvePaths(p)
	want := []string{
		"/a/s1.0007.png",
		"/a/s1.0008.png",
		"/a/s1.0009.png",
		"/b/1010/s2_1010.jpg",
		"/b/1011/s2_1011.jpg",
	}
	if len(paths) != p.Total() {
		t.Fatalf("Expected %d paths, got %d", p.Total(), len(paths))
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestShotListRoundTrip(t *testing.T) {
	c, err := ParseCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, c); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	again, err := ParseCSV(&buf)
	if err != nil {
		t.Fatalf("ParseCSV after write failed: %v", err)
	}
	if again.AudioPath() != c.AudioPath() || len(again.Shots()) != len(c.Shots()) {
		t.Errorf("CSV round trip mismatch")
	}

	path := filepath.Join(t.TempDir(), "shots.yaml")
	if err := WriteYAML(c, path); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}
	fromYAML, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if fromYAML.Playlist("animazione").Total() != 5 {
		t.Errorf("Expected 5 frames after YAML round trip, got %d", fromYAML.Playlist("animazione").Total())
	}
}
