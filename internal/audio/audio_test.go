package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeClock struct {
	calls   []string
	loadErr error
	playErr error
	loaded  bool
}

func (f *fakeClock) Load(path string) error {
	f.calls = append(f.calls, "load")
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	return nil
}

func (f *fakeClock) Play(offset float64) error {
	f.calls = append(f.calls, fmt.Sprintf("play(%.2f)", offset))
	return f.playErr
}

func (f *fakeClock) Stop() { f.calls = append(f.calls, "stop") }
func (f *fakeClock) Pause() { f.calls = append(f.calls, "pause") }
func (f *fakeClock) Unpause() { f.calls = append(f.calls, "unpause") }
func (f *fakeClock) IsInitialized() bool { return f.loaded }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGuardNoPathIsNoop(t *testing.T) {
	clock := &fakeClock{}
	g := NewGuard(clock, "", quiet())
	g.Start(1)
	g.Pause()
	g.Unpause()
	g.Seek(2)
	g.Stop()
	if len(clock.calls) != 0 {
		t.Errorf("Expected no calls, got %v", clock.calls)
	}
	if g.Enabled() {
		t.Error("Guard without a path must report disabled")
	}
}

func TestGuardLifecycle(t *testing.T) {
	clock := &fakeClock{}
	g := NewGuard(clock, "/audio/ep01.wav", quiet())
	g.Start(0.4)
	g.Pause()
	g.Unpause()
	g.Seek(0.04)
	g.Stop()

	want := "stop load play(0.40) pause unpause play(0.04) stop"
	if got := strings.Join(clock.calls, " "); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestGuardDisablesOnLoadFailure(t *testing.T) {
	clock := &fakeClock{loadErr: errors.New("unsupported format")}
	g := NewGuard(clock, "/audio/broken.xyz", quiet())
	g.Start(0)
	if g.Enabled() {
		t.Fatal("Expected audio disabled after load failure")
	}
	g.Seek(1)
	g.Pause()
	for _, c := range clock.calls {
		if strings.HasPrefix(c, "play") || c == "pause" {
			t.Errorf("Unexpected call after disable: %s", c)
		}
	}
}

func TestGuardDisablesOnPlayFailure(t *testing.T) {
	clock := &fakeClock{playErr: errors.New("device busy")}
	g := NewGuard(clock, "/audio/ep01.wav", quiet())
	g.Start(0)
	g.Seek(3)
	plays := 0
	for _, c := range clock.calls {
		if strings.HasPrefix(c, "play") {
			plays++
		}
	}
	if plays != 1 {
		t.Errorf("Expected a single play attempt, got %d (%v)", plays, clock.calls)
	}
}

func TestFFplayRequiresLoad(t *testing.T) {
	f := NewFFplay()
	if err := f.Play(0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
	if f.IsInitialized() {
		t.Error("Expected uninitialized clock")
	}
	if err := f.Load("/nonexistent/track.wav"); err == nil {
		t.Error("Expected error loading missing file")
	}
	f.Stop()
	f.Pause()
	f.Unpause()
}
