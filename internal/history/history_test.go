package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ivlev/shotplayer/internal/engine"
	"github.com/ivlev/shotplayer/internal/review"
	"github.com/ivlev/shotplayer/internal/system"
)

func setupTestDB(t *testing.T) *SessionRepo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionRepo(db)
}

func testSession(id string, started time.Time) review.Session {
	return review.Session{
		ID:         id,
		Department: "animazione",
		Mode:       review.Scene,
		Report: engine.Report{
			TargetFPS:    25,
			AverageFPS:   24.6,
			FPSAvailable: true,
			Ticks:        50,
			Delivered:    48,
			Skipped:      2,
			MissingFiles: 2,
			Retargets:    1,
			Paused:       1500 * time.Millisecond,
			StartIndex:   3,
			LastIndex:    52,
			Reason:       engine.EndTrim,
			StartedAt:    started,
			FinishedAt:   started.Add(3 * time.Second),
		},
	}
}

func TestInsertAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := NewRecord(testSession("a1b2c3d4-0000", started), system.HostMemory{TotalMB: 16384, AvailableMB: 8000})
	if err := repo.Insert(ctx, rec); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	got, err := repo.Get(ctx, "a1b2c3d4-0000")
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got.Mode != "scene" || got.Reason != "end_of_trim" {
		t.Errorf("Expected scene/end_of_trim, got %s/%s", got.Mode, got.Reason)
	}
	if !got.AverageFPS.Valid || got.AverageFPS.Float64 != 24.6 {
		t.Errorf("Expected average 24.6, got %+v", got.AverageFPS)
	}
	if got.Delivered != 48 || got.Skipped != 2 || got.MissingFiles != 2 || got.Retargets != 1 {
		t.Errorf("Unexpected counters %+v", got)
	}
	if got.Paused != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s paused, got %v", got.Paused)
	}
	if !got.StartedAt.Equal(started) || !got.FinishedAt.Equal(started.Add(3*time.Second)) {
		t.Errorf("Timestamps changed: %v %v", got.StartedAt, got.FinishedAt)
	}
	if got.HostTotalMB != 16384 || got.HostAvailableMB != 8000 {
		t.Errorf("Unexpected host memory %d/%d", got.HostTotalMB, got.HostAvailableMB)
	}
	if !strings.Contains(got.Summary(), "fps=24.60/25") {
		t.Errorf("Unexpected summary %q", got.Summary())
	}
}

func TestUnavailableAverageAndError(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	s := testSession("short", time.Now())
	s.Report.FPSAvailable = false
	s.Report.Reason = engine.EndFault
	s.Err = errors.New("sink exploded")
	if err := repo.Insert(ctx, NewRecord(s, system.HostMemory{})); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "short")
	if err != nil {
		t.Fatal(err)
	}
	if got.AverageFPS.Valid {
		t.Errorf("Expected null average, got %v", got.AverageFPS.Float64)
	}
	if got.Error != "sink exploded" {
		t.Errorf("Expected stored error, got %q", got.Error)
	}
	if !strings.Contains(got.Summary(), "fps=n/a") {
		t.Errorf("Unexpected summary %q", got.Summary())
	}
}

func TestGetMissing(t *testing.T) {
	repo := setupTestDB(t)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		rec := NewRecord(testSession(id, base.Add(time.Duration(i)*time.Minute)), system.HostMemory{})
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "third" || recs[1].ID != "second" {
		var ids []string
		for _, r := range recs {
			ids = append(ids, r.ID)
		}
		t.Errorf("Expected [third second], got %v", ids)
	}
}

func TestRecorderAssignsMissingID(t *testing.T) {
	repo := setupTestDB(t)
	record := repo.Recorder(slog.New(slog.NewTextHandler(io.Discard, nil)))

	s := testSession("", time.Now())
	record(s)

	recs, err := repo.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID == "" {
		t.Fatalf("Expected one recorded session with an id, got %+v", recs)
	}
}
