package prefetch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ivlev/shotplayer/internal/source"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/shots/s1.%04d.png", i+1)
	}
	return paths
}

func okLoader(calls *atomic.Int32) source.Loader {
	return source.LoaderFunc(func(path string) (image.Image, error) {
		if calls != nil {
			calls.Add(1)
		}
		return image.NewGray(image.Rect(0, 0, 2, 2)), nil
	})
}

func TestDeliversInOrderFromOffset(t *testing.T) {
	paths := makePaths(10)
	p := New(context.Background(), okLoader(nil), paths, 4, 3, quietLogger())
	defer p.Stop()

	for want := 3; want < 10; want++ {
		f, ok := p.GetImage(time.Second)
		if !ok {
			t.Fatalf("Expected frame %d, got none", want)
		}
		if f.Index != want || f.Path != paths[want] {
			t.Errorf("Expected frame %d (%s), got %d (%s)", want, paths[want], f.Index, f.Path)
		}
	}

	// Producer finished: channel is closed, no wait.
	start := time.Now()
	if _, ok := p.GetImage(time.Second); ok {
		t.Error("Expected no frame after the end of the sequence")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("GetImage waited on a finished producer")
	}
}

func TestBackpressure(t *testing.T) {
	var calls atomic.Int32
	p := New(context.Background(), okLoader(&calls), makePaths(100), 5, 0, quietLogger())
	defer p.Stop()

	time.Sleep(100 * time.Millisecond)
	// capacity frames queued plus at most one decoded frame waiting on the send.
	if got := calls.Load(); got > 6 {
		t.Errorf("Producer ran ahead of the queue bound: %d loads", got)
	}
	if q := p.Stats().Queued; q != 5 {
		t.Errorf("Expected full queue of 5, got %d", q)
	}

	p.GetImage(time.Second)
	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got > 7 {
		t.Errorf("Expected one more load after one pull, got %d", got)
	}
}

func TestMissingFramesAreSkipped(t *testing.T) {
	loader := source.LoaderFunc(func(path string) (image.Image, error) {
		if strings.Contains(path, "0003") {
			return nil, errors.New("no such file")
		}
		return image.NewGray(image.Rect(0, 0, 1, 1)), nil
	})
	p := New(context.Background(), loader, makePaths(5), 10, 0, quietLogger())
	defer p.Stop()

	var got []int
	for {
		f, ok := p.GetImage(200 * time.Millisecond)
		if !ok {
			break
		}
		got = append(got, f.Index)
	}
	want := []int{0, 1, 3, 4}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if s := p.Stats(); s.Missing != 1 || s.Loaded != 4 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestGetImageTimeout(t *testing.T) {
	block := make(chan struct{})
	loader := source.LoaderFunc(func(path string) (image.Image, error) {
		<-block
		return image.NewGray(image.Rect(0, 0, 1, 1)), nil
	})
	p := New(context.Background(), loader, makePaths(3), 2, 0, quietLogger())

	start := time.Now()
	if _, ok := p.GetImage(50 * time.Millisecond); ok {
		t.Error("Expected timeout")
	}
	if el := time.Since(start); el < 50*time.Millisecond {
		t.Errorf("Returned before timeout: %v", el)
	}

	close(block)
	p.Stop()
}

func TestStopIsIdempotentAndJoins(t *testing.T) {
	var inDecode atomic.Bool
	loader := source.LoaderFunc(func(path string) (image.Image, error) {
		inDecode.Store(true)
		time.Sleep(20 * time.Millisecond)
		inDecode.Store(false)
		return image.NewGray(image.Rect(0, 0, 1, 1)), nil
	})
	p := New(context.Background(), loader, makePaths(1000), 1000, 0, quietLogger())
	time.Sleep(30 * time.Millisecond)

	p.Stop()
	if inDecode.Load() {
		t.Error("Producer was mid-decode after Stop returned")
	}
	p.Stop()
}

func TestStopWhileBlockedOnFullQueue(t *testing.T) {
	p := New(context.Background(), okLoader(nil), makePaths(50), 1, 0, quietLogger())
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop deadlocked on a full queue")
	}
}
