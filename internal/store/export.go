package store

import (
	"context"
	"fmt"

	"github.com/rcliao/companion-memory/internal/model"
)

// Export returns every record, oldest first.
func (s *SQLiteStore) Export(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	p, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}
	snap.Profile = p

	memories, err := s.QueryMemories(ctx, MemoryQuery{})
	if err != nil {
		return nil, fmt.Errorf("export memories: %w", err)
	}
	// QueryMemories returns newest first.
	for i, j := 0, len(memories)-1; i < j; i, j = i+1, j-1 {
		memories[i], memories[j] = memories[j], memories[i]
	}
	snap.Memories = memories

	sessions, err := s.ListSessions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("export sessions: %w", err)
	}
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}
	snap.Sessions = sessions

	rows, err := s.q.QueryContext(ctx,
		`SELECT id, session_id, timestamp, type, value, metadata FROM signals ORDER BY timestamp`)
	if err != nil {
		return nil, fmt.Errorf("export signals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		snap.Signals = append(snap.Signals, sig)
	}
	return snap, rows.Err()
}

// Import stores records from an export. Records keep their IDs, layers and
// access history; ones already present are skipped. Ownership is rewritten to
// this store's profile.
func (s *SQLiteStore) Import(ctx context.Context, snap *Snapshot) (int, error) {
	imported := 0
	err := s.Update(ctx, func(tx Store) error {
		ts := tx.(*SQLiteStore)

		var count int
		if err := ts.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
			return err
		}
		if count == 0 && snap.Profile != nil {
			if err := ts.insertProfile(ctx, snap.Profile); err != nil {
				return err
			}
		}
		p, err := ts.Profile(ctx)
		if err != nil {
			return err
		}

		for _, sess := range snap.Sessions {
			sess.UserID = p.ID
			var endedAt *string
			if sess.EndedAt != nil {
				e := formatTime(*sess.EndedAt)
				endedAt = &e
			}
			_, err := ts.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO sessions (id, user_id, type, started_at, ended_at, duration) VALUES (?, ?, ?, ?, ?, ?)`,
				sess.ID, sess.UserID, string(sess.Type), formatTime(sess.StartedAt), endedAt, sess.Duration.Seconds())
			if err != nil {
				return fmt.Errorf("import session: %w", err)
			}
		}

		for _, m := range snap.Memories {
			if _, err := model.ParseLayer(string(m.Layer)); err != nil {
				return fmt.Errorf("import memory %s: %w", m.ID, err)
			}
			res, err := ts.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO memories (id, user_id, session_id, content, content_folded, embedding, importance,
				                                 access_count, created_at, last_accessed, layer, tags)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				m.ID, p.ID, nullString(m.SessionID), m.Content, Fold(m.Content),
				marshalJSON(m.Embedding, len(m.Embedding) == 0), m.Importance, m.AccessCount,
				formatTime(m.CreatedAt), formatTime(m.LastAccessed), string(m.Layer),
				marshalJSON(m.Tags, len(m.Tags) == 0))
			if err != nil {
				return fmt.Errorf("import memory: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				imported++
			}
		}

		for _, sig := range snap.Signals {
			_, err := ts.q.ExecContext(ctx,
				`INSERT OR IGNORE INTO signals (id, session_id, timestamp, type, value, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
				sig.ID, nullString(sig.SessionID), formatTime(sig.Timestamp), string(sig.Type), sig.Value,
				marshalJSON(sig.Metadata, len(sig.Metadata) == 0))
			if err != nil {
				return fmt.Errorf("import signal: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}
