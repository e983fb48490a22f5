package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPlaylist = errors.New("playlist has no frames")
	ErrInvalidRange  = errors.New("end_frame before start_frame")
)

// Shot is a department-tagged run of frames sharing one path template.
type Shot struct {
	ID            string `yaml:"shot_id"`
	Department    string `yaml:"department"`
	PathTemplate  string `yaml:"frame_path"`
	StartFrame    int    `yaml:"start_frame"`
	EndFrame      int    `yaml:"end_frame"`
	AbsoluteStart int    `yaml:"-"`
}

// Len returns the number of frames in the shot.
func (s Shot) Len() int {
	return s.EndFrame - s.StartFrame + 1
}

// AbsoluteEnd returns the last global index covered by the shot.
func (s Shot) AbsoluteEnd() int {
	return s.AbsoluteStart + s.Len() - 1
}

// Catalog holds every shot of a shot list in file order plus the optional audio track.
// It is not mutated after construction.
type Catalog struct {
	shots     []Shot
	audioPath string
}

func New(shots []Shot, audioPath string) (*Catalog, error) {
	for i, s := range shots {
		if s.EndFrame < s.StartFrame {
			return nil, fmt.Errorf("shot %q (#%d): %w", s.ID, i, ErrInvalidRange)
		}
	}
	cp := make([]Shot, len(shots))
	copy(cp, shots)
	return &Catalog{shots: cp, audioPath: audioPath}, nil
}

func (c *Catalog) AudioPath() string {
	return c.audioPath
}

func (c *Catalog) Shots() []Shot {
	out := make([]Shot, len(c.shots))
	copy(out, c.shots)
	return out
}

// Departments lists department tags in first-seen order.
func (c *Catalog) Departments() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.shots {
		if !seen[s.Department] {
			seen[s.Department] = true
			out = append(out, s.Department)
		}
	}
	return out
}

// Playlist filters the catalog to one department and lays the shots out on the
// global frame timeline.
func (c *Catalog) Playlist(department string) *Playlist {
	var shots []Shot
	for _, s := range c.shots {
		if s.Department == department {
			shots = append(shots, s)
		}
	}
	return NewPlaylist(shots)
}
