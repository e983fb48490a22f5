package audio

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/ivlev/shotplayer/internal/system"
)

// FFplay plays the soundtrack through a headless ffplay process. Pause and
// unpause suspend and continue the process; every Play restarts it at the
// requested offset.
type FFplay struct {
	Binary string

	mu       sync.Mutex
	path   string
	cmd    *exec.Cmd
	done   chan struct{}
	paused bool
}

func NewFFplay() *FFplay {
	return &FFplay{Binary: "ffplay"}
}

// Load checks the file with ffprobe and remembers it for Play.
func (f *FFplay) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if _, err := system.GetAudioDuration(path); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
	return nil
}

func (f *FFplay) Play(offsetSeconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.path == "" {
		return ErrNotLoaded
	}
	f.stopLocked()
	if offsetSeconds < 0 {
		offsetSeconds = 0
	}

	cmd := exec.Command(f.Binary,
		"-nodisp", "-autoexit", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", offsetSeconds),
		f.path,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffplay start: %w", err)
	}
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	f.cmd = cmd
	f.done = done
	f.paused = false
	return nil
}

func (f *FFplay) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd != nil && !f.paused {
		f.cmd.Process.Signal(syscall.SIGSTOP)
		f.paused = true
	}
}

func (f *FFplay) Unpause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cmd != nil && f.paused {
		f.cmd.Process.Signal(syscall.SIGCONT)
		f.paused = false
	}
}

func (f *FFplay) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLocked()
}

func (f *FFplay) stopLocked() {
	if f.cmd == nil {
		return
	}
	if f.paused {
		f.cmd.Process.Signal(syscall.SIGCONT)
	}
	f.cmd.Process.Kill()
	<-f.done
	f.cmd = nil
	f.done = nil
	f.paused = false
}

func (f *FFplay) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path != ""
}
