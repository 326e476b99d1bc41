package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/companion-memory/internal/model"
)

func (s *SQLiteStore) PutSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" {
		sess.ID = s.NewID()
	}
	var endedAt *string
	if sess.EndedAt != nil {
		e := formatTime(*sess.EndedAt)
		endedAt = &e
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, type, started_at, ended_at, duration) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, string(sess.Type), formatTime(sess.StartedAt), endedAt, sess.Duration.Seconds())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(ctx context.Context, id string, endedAt time.Time, duration time.Duration) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, duration = ? WHERE id = ? AND ended_at IS NULL`,
		formatTime(endedAt), duration.Seconds(), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("active session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	query := `SELECT id, user_id, type, started_at, ended_at, duration FROM sessions ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) TotalSessionDuration(ctx context.Context) (time.Duration, error) {
	var total float64
	if err := s.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(duration), 0) FROM sessions`).Scan(&total); err != nil {
		return 0, err
	}
	return secondsToDuration(total), nil
}

func (s *SQLiteStore) PutSignals(ctx context.Context, sessionID string, signals []model.BehaviorSignal) error {
	if len(signals) == 0 {
		return nil
	}
	return s.Update(ctx, func(tx Store) error {
		q := tx.(*SQLiteStore).q
		for i := range signals {
			sig := &signals[i]
			if sig.ID == "" {
				sig.ID = s.NewID()
			}
			_, err := q.ExecContext(ctx,
				`INSERT INTO signals (id, session_id, timestamp, type, value, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
				sig.ID, nullString(sessionID), formatTime(sig.Timestamp), string(sig.Type), sig.Value,
				marshalJSON(sig.Metadata, len(sig.Metadata) == 0))
			if err != nil {
				return fmt.Errorf("insert signal: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) AttachSignals(ctx context.Context, sessionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	args = append([]any{sessionID}, args...)
	_, err := s.q.ExecContext(ctx, `UPDATE signals SET session_id = ? WHERE id IN `+in, args...)
	return err
}

func (s *SQLiteStore) SignalStats(ctx context.Context, sessionID string, typ model.SignalType) (model.SignalStatistics, error) {
	var st model.SignalStatistics
	var avg, lo, hi sql.NullFloat64
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(value), MIN(value), MAX(value) FROM signals WHERE session_id = ? AND type = ?`,
		sessionID, string(typ)).Scan(&st.Count, &avg, &lo, &hi)
	if err != nil {
		return st, err
	}
	st.Average, st.Min, st.Max = avg.Float64, lo.Float64, hi.Float64
	return st, nil
}

func scanSession(row scanner) (model.Session, error) {
	var sess model.Session
	var typ, startedAt string
	var endedAt sql.NullString
	var duration float64

	if err := row.Scan(&sess.ID, &sess.UserID, &typ, &startedAt, &endedAt, &duration); err != nil {
		return sess, err
	}
	sess.Type = model.SessionType(typ)
	sess.StartedAt = parseTime(startedAt)
	if endedAt.Valid {
		t := parseTime(endedAt.String)
		sess.EndedAt = &t
	}
	sess.Duration = secondsToDuration(duration)
	return sess, nil
}

func scanSignal(row scanner) (model.BehaviorSignal, error) {
	var sig model.BehaviorSignal
	var sessionID, metadata sql.NullString
	var ts, typ string

	if err := row.Scan(&sig.ID, &sessionID, &ts, &typ, &sig.Value, &metadata); err != nil {
		return sig, err
	}
	sig.SessionID = sessionID.String
	sig.Timestamp = parseTime(ts)
	sig.Type = model.SignalType(typ)
	if metadata.Valid {
		json.Unmarshal([]byte(metadata.String), &sig.Metadata)
	}
	return sig, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
