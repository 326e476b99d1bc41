package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcliao/companion-memory/internal/model"
)

func putSession(t *testing.T, s *SQLiteStore, started time.Time) *model.Session {
	t.Helper()
	ctx := context.Background()
	p, _ := s.Profile(ctx)
	sess := &model.Session{UserID: p.ID, Type: model.SessionConversation, StartedAt: started}
	if err := s.PutSession(ctx, sess); err != nil {
		t.Fatalf("put session: %v", err)
	}
	return sess
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sess := putSession(t, s, base)
	end := base.Add(90 * time.Second)
	if err := s.EndSession(ctx, sess.ID, end, 90*time.Second); err != nil {
		t.Fatalf("end: %v", err)
	}
	// A sealed session cannot be ended twice.
	if err := s.EndSession(ctx, sess.ID, end.Add(time.Minute), time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second end, got %v", err)
	}

	list, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list))
	}
	got := list[0]
	if got.Active() || !got.EndedAt.Equal(end) {
		t.Errorf("expected ended session at %v, got %+v", end, got)
	}
	if got.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %v", got.Duration)
	}
}

func TestListSessionsNewestFirstAndTotal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := putSession(t, s, base)
	b := putSession(t, s, base.Add(time.Hour))
	putSession(t, s, base.Add(2*time.Hour)) // still active
	s.EndSession(ctx, a.ID, base.Add(10*time.Second), 10*time.Second)
	s.EndSession(ctx, b.ID, base.Add(time.Hour+30*time.Second), 30*time.Second)

	list, _ := s.ListSessions(ctx, 2)
	if len(list) != 2 || list[1].ID != b.ID {
		t.Fatalf("expected newest two sessions, got %+v", list)
	}

	total, err := s.TotalSessionDuration(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 40*time.Second {
		t.Errorf("expected 40s total, got %v", total)
	}
}

func TestSignalsAttachAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := putSession(t, s, base)

	early := []model.BehaviorSignal{
		{Timestamp: base, Type: model.SignalVoiceAmplitude, Value: 0.2},
		{Timestamp: base, Type: model.SignalVoiceAmplitude, Value: 0.6},
	}
	if err := s.PutSignals(ctx, "", early); err != nil {
		t.Fatalf("put unowned: %v", err)
	}
	st, _ := s.SignalStats(ctx, sess.ID, model.SignalVoiceAmplitude)
	if st.Count != 0 {
		t.Errorf("unattached signals must not count toward a session, got %d", st.Count)
	}

	if err := s.AttachSignals(ctx, sess.ID, []string{early[0].ID, early[1].ID}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	late := []model.BehaviorSignal{
		{Timestamp: base, Type: model.SignalVoiceAmplitude, Value: 1.0, Metadata: map[string]any{"src": "mic"}},
		{Timestamp: base, Type: model.SignalExpression, Value: 0.5},
	}
	if err := s.PutSignals(ctx, sess.ID, late); err != nil {
		t.Fatalf("put owned: %v", err)
	}

	st, err := s.SignalStats(ctx, sess.ID, model.SignalVoiceAmplitude)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != 3 || st.Min != 0.2 || st.Max != 1.0 {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Average < 0.599 || st.Average > 0.601 {
		t.Errorf("expected average 0.6, got %v", st.Average)
	}

	empty, _ := s.SignalStats(ctx, sess.ID, model.SignalAttention)
	if empty != (model.SignalStatistics{}) {
		t.Errorf("expected zero stats, got %+v", empty)
	}
}

func TestMemoriesBySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := putSession(t, s, base)
	p, _ := s.Profile(ctx)

	m := &model.Memory{UserID: p.ID, SessionID: sess.ID, Content: "in session", Importance: 0.5,
		Layer: model.LayerWorking, CreatedAt: base, LastAccessed: base}
	s.PutMemory(ctx, m)
	putMemory(t, s, "outside", 0.5, model.LayerWorking, base)

	got, _ := s.QueryMemories(ctx, MemoryQuery{SessionID: sess.ID})
	if len(got) != 1 || got[0].Content != "in session" {
		t.Errorf("expected only the session memory, got %v", got)
	}
}
