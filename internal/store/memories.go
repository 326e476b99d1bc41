package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/companion-memory/internal/model"
)

const memoryColumns = `id, user_id, session_id, content, embedding, importance, access_count,
	created_at, last_accessed, layer, tags`

func (s *SQLiteStore) PutMemory(ctx context.Context, m *model.Memory) error {
	if m.ID == "" {
		m.ID = s.NewID()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, session_id, content, content_folded, embedding, importance,
		                       access_count, created_at, last_accessed, layer, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, nullString(m.SessionID), m.Content, Fold(m.Content),
		marshalJSON(m.Embedding, len(m.Embedding) == 0), m.Importance, m.AccessCount,
		formatTime(m.CreatedAt), formatTime(m.LastAccessed), string(m.Layer),
		marshalJSON(m.Tags, len(m.Tags) == 0))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) QueryMemories(ctx context.Context, q MemoryQuery) ([]model.Memory, error) {
	where := []string{"1 = 1"}
	var args []any

	if q.Layer != "" {
		where = append(where, "layer = ?")
		args = append(args, string(q.Layer))
	}
	if q.Contains != "" {
		where = append(where, `content_folded LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(Fold(q.Contains)))
	}
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}

	var order string
	switch q.Order {
	case OrderRelevance:
		order = "importance DESC, last_accessed DESC, created_at DESC"
	case OrderEviction:
		order = "importance ASC, access_count ASC, created_at ASC"
	default:
		order = "created_at DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM memories WHERE %s ORDER BY %s`,
		memoryColumns, strings.Join(where, " AND "), order)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func (s *SQLiteStore) CountMemories(ctx context.Context, layer model.Layer) (int, error) {
	var n int
	var err error
	if layer == "" {
		err = s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	} else {
		err = s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE layer = ?`, string(layer)).Scan(&n)
	}
	return n, err
}

func (s *SQLiteStore) TouchMemories(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	args = append([]any{formatTime(at)}, args...)
	_, err := s.q.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ? WHERE id IN `+in, args...)
	return err
}

func (s *SQLiteStore) SetLayer(ctx context.Context, ids []string, layer model.Layer) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	args = append([]any{string(layer)}, args...)
	_, err := s.q.ExecContext(ctx, `UPDATE memories SET layer = ? WHERE id IN `+in, args...)
	return err
}

func (s *SQLiteStore) DeleteMemories(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	_, err := s.q.ExecContext(ctx, `DELETE FROM memories WHERE id IN `+in, args...)
	return err
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var sessionID, embedding, tags sql.NullString
	var layer, createdAt, lastAccessed string

	err := row.Scan(
		&m.ID, &m.UserID, &sessionID, &m.Content, &embedding, &m.Importance, &m.AccessCount,
		&createdAt, &lastAccessed, &layer, &tags,
	)
	if err != nil {
		return m, err
	}

	m.SessionID = sessionID.String
	m.Layer = model.Layer(layer)
	m.CreatedAt = parseTime(createdAt)
	m.LastAccessed = parseTime(lastAccessed)
	if embedding.Valid {
		json.Unmarshal([]byte(embedding.String), &m.Embedding)
	}
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &m.Tags)
	}
	return m, nil
}
