package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/companion-memory/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func putMemory(t *testing.T, s *SQLiteStore, content string, importance float64, layer model.Layer, created time.Time) *model.Memory {
	t.Helper()
	ctx := context.Background()
	p, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	m := &model.Memory{
		UserID:       p.ID,
		Content:      content,
		Importance:   importance,
		CreatedAt:    created,
		LastAccessed: created,
		Layer:        layer,
	}
	if err := s.PutMemory(ctx, m); err != nil {
		t.Fatalf("put memory: %v", err)
	}
	return m
}

func TestProfileCreatedOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p1, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	p2, err := s.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p1.ID == "" || p1.ID != p2.ID {
		t.Errorf("expected stable profile id, got %q and %q", p1.ID, p2.ID)
	}

	if err := s.SetProfileName(ctx, "Ana"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	p3, _ := s.Profile(ctx)
	if p3.Name != "Ana" {
		t.Errorf("expected name Ana, got %q", p3.Name)
	}
}

func TestPutAndGetMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := putMemory(t, s, "hello world", 0.4, model.LayerWorking, base)
	if m.ID == "" {
		t.Fatal("expected non-empty ID")
	}

	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "hello world" || got.Layer != model.LayerWorking {
		t.Errorf("unexpected memory %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("expected created_at %v, got %v", base, got.CreatedAt)
	}

	_, err = s.GetMemory(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTagsAndEmbeddingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p, _ := s.Profile(ctx)

	m := &model.Memory{
		UserID: p.ID, Content: "tagged", Importance: 0.5, Layer: model.LayerWorking,
		CreatedAt: base, LastAccessed: base,
		Tags:      []string{"speech", "input"},
		Embedding: []float32{0.1, 0.2},
	}
	if err := s.PutMemory(ctx, m); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, _ := s.GetMemory(ctx, m.ID)
	if len(got.Tags) != 2 || got.Tags[0] != "speech" || got.Tags[1] != "input" {
		t.Errorf("tags not preserved in order: %v", got.Tags)
	}
	if len(got.Embedding) != 2 {
		t.Errorf("expected embedding of 2 dims, got %v", got.Embedding)
	}
}

func TestQueryByLayerNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putMemory(t, s, "a", 0.1, model.LayerWorking, base)
	putMemory(t, s, "b", 0.1, model.LayerWorking, base.Add(time.Second))
	putMemory(t, s, "c", 0.9, model.LayerSemantic, base.Add(2*time.Second))

	got, err := s.QueryMemories(ctx, MemoryQuery{Layer: model.LayerWorking})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].Content != "b" || got[1].Content != "a" {
		t.Fatalf("expected [b a], got %v", got)
	}

	limited, _ := s.QueryMemories(ctx, MemoryQuery{Limit: 1})
	if len(limited) != 1 || limited[0].Content != "c" {
		t.Errorf("expected newest memory c, got %v", limited)
	}
}

func TestQueryContainsFoldsCaseAndDiacritics(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putMemory(t, s, "Usuário disse: Olá, tudo bem?", 0.5, model.LayerWorking, base)
	putMemory(t, s, "nothing relevant", 0.5, model.LayerWorking, base)

	for _, q := range []string{"ola", "OLÁ", "usuario", "TUDO BEM"} {
		got, err := s.QueryMemories(ctx, MemoryQuery{Contains: q})
		if err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
		if len(got) != 1 {
			t.Errorf("query %q: expected 1 match, got %d", q, len(got))
		}
	}
}

func TestQueryContainsEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putMemory(t, s, "100% sure", 0.5, model.LayerWorking, base)
	putMemory(t, s, "100 percent", 0.5, model.LayerWorking, base)

	got, _ := s.QueryMemories(ctx, MemoryQuery{Contains: "100%"})
	if len(got) != 1 {
		t.Errorf("expected literal %% match only, got %d", len(got))
	}
	got, _ = s.QueryMemories(ctx, MemoryQuery{Contains: "1_0"})
	if len(got) != 0 {
		t.Errorf("expected _ to be literal, got %d", len(got))
	}
}

func TestQueryOrders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	low := putMemory(t, s, "low", 0.2, model.LayerWorking, base)
	putMemory(t, s, "high", 0.6, model.LayerWorking, base.Add(time.Second))
	putMemory(t, s, "fresh", 0.2, model.LayerWorking, base.Add(2*time.Second))

	rel, _ := s.QueryMemories(ctx, MemoryQuery{Order: OrderRelevance})
	if rel[0].Content != "high" {
		t.Errorf("relevance order should start with high, got %s", rel[0].Content)
	}

	if err := s.TouchMemories(ctx, []string{low.ID}, base.Add(time.Minute)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	ev, _ := s.QueryMemories(ctx, MemoryQuery{Order: OrderEviction})
	// fresh has importance 0.2 and no accesses; low has one access now.
	if ev[0].Content != "fresh" || ev[1].Content != "low" || ev[2].Content != "high" {
		t.Errorf("unexpected eviction order: %s %s %s", ev[0].Content, ev[1].Content, ev[2].Content)
	}
}

func TestTouchSetLayerDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := putMemory(t, s, "x", 0.5, model.LayerWorking, base)
	at := base.Add(time.Hour)
	s.TouchMemories(ctx, []string{m.ID}, at)
	s.TouchMemories(ctx, []string{m.ID}, at)

	got, _ := s.GetMemory(ctx, m.ID)
	if got.AccessCount != 2 {
		t.Errorf("expected access_count 2, got %d", got.AccessCount)
	}
	if !got.LastAccessed.Equal(at) {
		t.Errorf("expected last_accessed %v, got %v", at, got.LastAccessed)
	}

	if err := s.SetLayer(ctx, []string{m.ID}, model.LayerEpisodic); err != nil {
		t.Fatalf("set layer: %v", err)
	}
	n, _ := s.CountMemories(ctx, model.LayerEpisodic)
	if n != 1 {
		t.Errorf("expected 1 episodic, got %d", n)
	}

	if err := s.DeleteMemories(ctx, []string{m.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, _ = s.CountMemories(ctx, "")
	if n != 0 {
		t.Errorf("expected 0 memories, got %d", n)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p, _ := s.Profile(ctx)

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx Store) error {
		m := &model.Memory{UserID: p.ID, Content: "rolled back", Importance: 0.1,
			Layer: model.LayerWorking, CreatedAt: base, LastAccessed: base}
		if err := tx.PutMemory(ctx, m); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	n, _ := s.CountMemories(ctx, "")
	if n != 0 {
		t.Errorf("expected rollback, found %d memories", n)
	}
}

func TestWipe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putMemory(t, s, "gone", 0.9, model.LayerSemantic, base)
	p1, _ := s.Profile(ctx)
	if err := s.Wipe(ctx); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	n, _ := s.CountMemories(ctx, "")
	if n != 0 {
		t.Errorf("expected 0 memories after wipe, got %d", n)
	}
	p2, _ := s.Profile(ctx)
	if p1.ID == p2.ID {
		t.Error("expected a fresh profile after wipe")
	}
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	putMemory(t, s, "ephemeral", 0.5, model.LayerWorking, base)
	n, _ := s.CountMemories(context.Background(), model.LayerWorking)
	if n != 1 {
		t.Errorf("expected 1, got %d", n)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestFold(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Olá", "ola"},
		{"CAFÉ", "cafe"},
		{"naïve", "naive"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
