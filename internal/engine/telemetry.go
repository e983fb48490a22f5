package engine

import (
	"fmt"
	"time"
)

// fpsWindowSize is the number of recent deliveries behind the live FPS figure.
const fpsWindowSize = 10

// underrunMargin is how far below target the session average may fall before
// the report flags an underrun.
const underrunMargin = 1.0

type EndReason string

const (
	EndStopped  EndReason = "stopped"
	EndPlaylist EndReason = "end_of_playlist"
	EndTrim     EndReason = "end_of_trim"
	EndCanceled EndReason = "canceled"
	EndFault    EndReason = "fault"
)

// Report summarizes one playback session.
type Report struct {
	TargetFPS    float64
	AverageFPS   float64
	FPSAvailable bool // false when fewer than two deliveries were timed
	Underrun     bool
	Ticks        int
	Delivered    int
	Skipped      int
	MissingFiles uint64
	Retargets    int
	Paused       time.Duration
	Audio        bool // soundtrack loaded and still in sync at the end
	StartIndex   int
	LastIndex    int
	Reason       EndReason
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (r Report) String() string {
	avg := "n/a"
	if r.FPSAvailable {
		avg = fmt.Sprintf("%.2f", r.AverageFPS)
	}
	return fmt.Sprintf("avg fps %s (target %.0f) | ticks %d, delivered %d, skipped %d | paused %.2fs | end %s",
		avg, r.TargetFPS, r.Ticks, r.Delivered, r.Skipped, r.Paused.Seconds(), r.Reason)
}

// telemetry keeps the live window and what the session average needs: the
// first and last delivery times, their count, and pause time between them.
type telemetry struct {
	window []time.Time
	first  time.Time
	last   time.Time
	count  int
	paused time.Duration
	held   time.Duration // pause since the last delivery, not yet bracketed
}

// record adds a delivery timestamp and returns the instantaneous FPS.
func (t *telemetry) record(now time.Time) float64 {
	if t.count == 0 {
		t.first = now
	} else {
		t.paused += t.held
	}
	t.held = 0
	t.last = now
	t.count++

	t.window = append(t.window, now)
	if len(t.window) > fpsWindowSize {
		t.window = t.window[len(t.window)-fpsWindowSize:]
	}
	return instantFPS(t.window)
}

// addPause holds paused wall time until the next delivery. Only pauses that
// fall between the first and last delivery shorten the measured span.
func (t *telemetry) addPause(d time.Duration) {
	if t.count > 0 {
		t.held += d
	}
}

// average returns (n-1)/(last-first-paused) or ok=false.
func (t *telemetry) average() (float64, bool) {
	if t.count < 2 {
		return 0, false
	}
	elapsed := t.last.Sub(t.first) - t.paused
	if elapsed <= 0 {
		return 0, false
	}
	return float64(t.count-1) / elapsed.Seconds(), true
}

func instantFPS(ts []time.Time) float64 {
	n := len(ts)
	if n < 2 {
		return 0
	}
	elapsed := ts[n-1].Sub(ts[0]).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(n-1) / elapsed
}
