package store

import (
	"context"
	"os"
)

// DBStats holds database statistics.
type DBStats struct {
	DBPath      string         `json:"db_path"`
	DBSizeBytes int64          `json:"db_size_bytes"`
	Profiles    int            `json:"profiles"`
	Memories    int            `json:"memories"`
	Sessions    int            `json:"sessions"`
	Signals     int            `json:"signals"`
	Unattached  int            `json:"unattached_signals"`
	Layers      map[string]int `json:"layers"`
}

// DBStats returns row counts and file size for the database at dbPath.
func (s *SQLiteStore) DBStats(ctx context.Context, dbPath string) (*DBStats, error) {
	st := &DBStats{DBPath: dbPath, Layers: map[string]int{}}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&st.Profiles)
	s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.Memories)
	s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions)
	s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals`).Scan(&st.Signals)
	s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals WHERE session_id IS NULL`).Scan(&st.Unattached)

	rows, err := s.q.QueryContext(ctx, `SELECT layer, COUNT(*) FROM memories GROUP BY layer`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var layer string
		var n int
		rows.Scan(&layer, &n)
		st.Layers[layer] = n
	}

	return st, rows.Err()
}
