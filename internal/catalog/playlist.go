package catalog

import (
	"sort"
)

// Playlist is an ordered, department-filtered sequence of shots defining the
// global frame index space [0, Total).
type Playlist struct {
	shots []Shot
	total int
}

// NewPlaylist assigns AbsoluteStart to every shot in order. The input slice is copied.
func NewPlaylist(shots []Shot) *Playlist {
	p := &Playlist{shots: make([]Shot, len(shots))}
	for i, s := range shots {
		s.AbsoluteStart = p.total
		p.shots[i] = s
		p.total += s.Len()
	}
	return p
}

func (p *Playlist) Total() int {
	return p.total
}

func (p *Playlist) Len() int {
	return len(p.shots)
}

func (p *Playlist) Shot(i int) Shot {
	return p.shots[i]
}

func (p *Playlist) Shots() []Shot {
	out := make([]Shot, len(p.shots))
	copy(out, p.shots)
	return out
}

// Find returns the position of the shot with the given id.
func (p *Playlist) Find(id string) (int, bool) {
	for i, s := range p.shots {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

// ShotAt returns the position of the shot containing global index g.
func (p *Playlist) ShotAt(g int) (int, bool) {
	if g < 0 || g >= p.total {
		return -1, false
	}
	i := sort.Search(len(p.shots), func(i int) bool {
		return p.shots[i].AbsoluteEnd() >= g
	})
	return i, true
}

// Locate maps a global index to its shot and local frame number.
func (p *Playlist) Locate(g int) (Shot, int, bool) {
	i, ok := p.ShotAt(g)
	if !ok {
		return Shot{}, 0, false
	}
	s := p.shots[i]
	return s, s.StartFrame + (g - s.AbsoluteStart), true
}

// Clamp pins g into [0, Total-1].
func (p *Playlist) Clamp(g int) int {
	return ClampIndex(g, p.total)
}

// ClampIndex pins g into [0, total-1]; total must be positive.
func ClampIndex(g, total int) int {
	if g < 0 {
		return 0
	}
	if g > total-1 {
		return total - 1
	}
	return g
}
