package catalog

import (
	"fmt"
	"strings"
)

// Placeholder is replaced by the zero-padded frame number in a shot's path template.
const Placeholder = "####"

// FramePath substitutes the frame number into a path template.
func FramePath(template string, frame int) string {
	return strings.ReplaceAll(template, Placeholder, fmt.Sprintf("%04d", frame))
}

// ResolvePaths expands the playlist into one locator per global index.
func ResolvePaths(p *Playlist) []string {
	paths := make([]string, 0, p.total)
	for _, s := range p.shots {
		for f := s.StartFrame; f <= s.EndFrame; f++ {
			paths = append(paths, FramePath(s.PathTemplate, f))
		}
	}
	return paths
}
