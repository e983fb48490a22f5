package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/shotplayer/internal/review"
	"github.com/ivlev/shotplayer/internal/system"
)

var ErrNotFound = errors.New("session not found")

// Record is one stored session.
type Record struct {
	ID              string
	Department      string
	Mode            string
	Reason          string
	TargetFPS       float64
	AverageFPS      sql.NullFloat64 // null when fewer than two frames were timed
	Underrun        bool
	Ticks           int
	Delivered       int
	Skipped         int
	MissingFiles    uint64
	Retargets       int
	Paused          time.Duration
	StartIndex      int
	LastIndex       int
	Error           string
	HostTotalMB     uint64
	HostAvailableMB uint64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// NewRecord flattens a finished session and the host memory seen at its end.
func NewRecord(s review.Session, host system.HostMemory) Record {
	r := s.Report
	rec := Record{
		ID:              s.ID,
		Department:      s.Department,
		Mode:            s.Mode.String(),
		Reason:          string(r.Reason),
		TargetFPS:       r.TargetFPS,
		AverageFPS:      sql.NullFloat64{Float64: r.AverageFPS, Valid: r.FPSAvailable},
		Underrun:        r.Underrun,
		Ticks:           r.Ticks,
		Delivered:       r.Delivered,
		Skipped:         r.Skipped,
		MissingFiles:    r.MissingFiles,
		Retargets:       r.Retargets,
		Paused:          r.Paused,
		StartIndex:      r.StartIndex,
		LastIndex:       r.LastIndex,
		HostTotalMB:     host.TotalMB,
		HostAvailableMB: host.AvailableMB,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	return rec
}

type SessionRepo struct {
	db *DB
}

func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Insert(ctx context.Context, rec Record) error {
	query := `
		INSERT OR REPLACE INTO sessions (
			id, department, mode, reason, target_fps, average_fps, underrun,
			ticks, delivered, skipped, missing_files, retargets, paused_ms,
			start_index, last_index, error, host_total_mb, host_available_mb,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID,
		rec.Department,
		rec.Mode,
		rec.Reason,
		rec.TargetFPS,
		rec.AverageFPS,
		rec.Underrun,
		rec.Ticks,
		rec.Delivered,
		rec.Skipped,
		int64(rec.MissingFiles),
		rec.Retargets,
		rec.Paused.Milliseconds(),
		rec.StartIndex,
		rec.LastIndex,
		rec.Error,
		int64(rec.HostTotalMB),
		int64(rec.HostAvailableMB),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `
	SELECT id, department, mode, reason, target_fps, average_fps, underrun,
		ticks, delivered, skipped, missing_files, retargets, paused_ms,
		start_index, last_index, error, host_total_mb, host_available_mb,
		started_at, finished_at
	FROM sessions`

func (r *SessionRepo) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.conn.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// Recent returns up to limit sessions, newest first.
func (r *SessionRepo) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.conn.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec               Record
		errText           sql.NullString
		missing           int64
		pausedMS          int64
		hostTotal, hostAv sql.NullInt64
		started, finished string
	)
	err := s.Scan(
		&rec.ID, &rec.Department, &rec.Mode, &rec.Reason, &rec.TargetFPS, &rec.AverageFPS,
		&rec.Underrun, &rec.Ticks, &rec.Delivered, &rec.Skipped, &missing, &rec.Retargets,
		&pausedMS, &rec.StartIndex, &rec.LastIndex, &errText, &hostTotal, &hostAv,
		&started, &finished,
	)
	if err != nil {
		return Record{}, err
	}
	rec.MissingFiles = uint64(missing)
	rec.Paused = time.Duration(pausedMS) * time.Millisecond
	rec.Error = errText.String
	rec.HostTotalMB = uint64(hostTotal.Int64)
	rec.HostAvailableMB = uint64(hostAv.Int64)
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Record{}, fmt.Errorf("bad started_at %q: %w", started, err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Record{}, fmt.Errorf("bad finished_at %q: %w", finished, err)
	}
	return rec, nil
}

// Recorder returns a review.WithSessionFunc callback that stores every
// finished session. Failures are logged, never returned to playback.
func (r *SessionRepo) Recorder(logger *slog.Logger) func(review.Session) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s review.Session) {
		host, err := system.ReadHostMemory()
		if err != nil {
			logger.Debug("host memory unavailable", "error", err)
		}
		rec := NewRecord(s, host)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.Insert(ctx, rec); err != nil {
			logger.Error("session not recorded", "session_id", rec.ID, "error", err)
			return
		}
		logger.Debug("session recorded", "session_id", rec.ID, "reason", rec.Reason)
	}
}

// Summary renders a one-line description for CLI listings.
func (rec Record) Summary() string {
	avg := "n/a"
	if rec.AverageFPS.Valid {
		avg = fmt.Sprintf("%.2f", rec.AverageFPS.Float64)
	}
	return fmt.Sprintf("%s %s %-8s %-16s fps=%s/%.0f delivered=%d skipped=%d",
		rec.StartedAt.Local().Format("2006-01-02 15:04:05"), rec.ID[:min(8, len(rec.ID))],
		rec.Mode, rec.Reason, avg, rec.TargetFPS, rec.Delivered, rec.Skipped)
}
