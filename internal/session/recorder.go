// Package session groups behavior telemetry into sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/companion-memory/internal/config"
	"github.com/rcliao/companion-memory/internal/metrics"
	"github.com/rcliao/companion-memory/internal/model"
	"github.com/rcliao/companion-memory/internal/store"
)

var (
	// ErrSessionActive is returned by Start while a session is already active.
	ErrSessionActive = errors.New("session already active")
	// ErrNoActiveSession is returned by End and RecordSignal when idle.
	ErrNoActiveSession = errors.New("no active session")
)

// Recorder tracks at most one active session and buffers its signals.
// Buffered signals are written without an owner every FlushEvery signals and
// attached to the session when it ends.
type Recorder struct {
	mu      sync.Mutex
	store   store.Store
	cfg     config.SessionConfig
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time

	current   *model.Session
	buffer    []model.BehaviorSignal
	persisted int // buffer[:persisted] is already in the store
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithMetrics records activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Recorder) { r.metrics = c }
}

// NewRecorder creates an idle Recorder over st.
func NewRecorder(st store.Store, cfg config.SessionConfig, opts ...Option) *Recorder {
	r := &Recorder{
		store:  st,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "session"))
	return r
}

// Start begins a session owned by the installation profile. If a session is
// already active it is returned unchanged together with ErrSessionActive.
func (r *Recorder) Start(ctx context.Context, typ model.SessionType) (*model.Session, error) {
	if _, err := model.ParseSessionType(string(typ)); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.logger.Warn("session already active", zap.String("session", r.current.ID))
		cur := *r.current
		return &cur, ErrSessionActive
	}

	profile, err := r.store.Profile(ctx)
	if err != nil {
		r.storeFailed("profile", err)
		return nil, err
	}

	sess := &model.Session{
		UserID:    profile.ID,
		Type:      typ,
		StartedAt: r.now(),
	}
	if err := r.store.PutSession(ctx, sess); err != nil {
		r.storeFailed("start", err)
		return nil, err
	}

	r.current = sess
	r.buffer = nil
	r.persisted = 0
	r.logger.Info("session started", zap.String("session", sess.ID), zap.String("type", string(typ)))
	r.metrics.SessionStarted(string(typ))

	out := *sess
	return &out, nil
}

// End seals the active session: its duration is computed once and every
// buffered signal is attached to it. The recorder is idle afterwards even
// when persistence fails.
func (r *Recorder) End(ctx context.Context) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		r.logger.Warn("no active session to end")
		return nil, ErrNoActiveSession
	}

	sess := *r.current
	endedAt := r.now()
	sess.EndedAt = &endedAt
	sess.Duration = endedAt.Sub(sess.StartedAt)

	flushed := make([]string, r.persisted)
	for i := range flushed {
		flushed[i] = r.buffer[i].ID
	}
	pending := r.buffer[r.persisted:]

	err := r.store.Update(ctx, func(tx store.Store) error {
		if err := tx.AttachSignals(ctx, sess.ID, flushed); err != nil {
			return fmt.Errorf("attach signals: %w", err)
		}
		if err := tx.PutSignals(ctx, sess.ID, pending); err != nil {
			return err
		}
		return tx.EndSession(ctx, sess.ID, endedAt, sess.Duration)
	})

	signals := len(r.buffer)
	r.current = nil
	r.buffer = nil
	r.persisted = 0

	if err != nil {
		r.storeFailed("end", err)
		return &sess, err
	}
	r.logger.Info("session ended",
		zap.String("session", sess.ID),
		zap.Duration("duration", sess.Duration),
		zap.Int("signals", signals))
	r.metrics.SessionEnded(sess.Duration)
	return &sess, nil
}

// RecordSignal buffers one measurement for the active session.
func (r *Recorder) RecordSignal(ctx context.Context, typ model.SignalType, value float64, metadata map[string]any) error {
	if _, err := model.ParseSignalType(string(typ)); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		r.logger.Debug("signal dropped", zap.String("type", string(typ)), zap.Error(ErrNoActiveSession))
		return ErrNoActiveSession
	}

	r.buffer = append(r.buffer, model.BehaviorSignal{
		Timestamp: r.now(),
		Type:      typ,
		Value:     value,
		Metadata:  metadata,
	})
	r.metrics.SignalRecorded(string(typ))

	if r.cfg.FlushEvery > 0 && len(r.buffer)%r.cfg.FlushEvery == 0 {
		r.flush(ctx)
	}
	return nil
}

// flush writes unpersisted buffered signals without an owner. Caller holds r.mu.
func (r *Recorder) flush(ctx context.Context) {
	pending := r.buffer[r.persisted:]
	if len(pending) == 0 {
		return
	}
	if err := r.store.PutSignals(ctx, "", pending); err != nil {
		r.storeFailed("flush", err)
		return
	}
	r.persisted = len(r.buffer)
	r.logger.Debug("signals flushed", zap.Int("count", len(pending)))
}

// Current returns a copy of the active session, or nil when idle.
func (r *Recorder) Current() *model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	cur := *r.current
	return &cur
}

// History lists sessions newest first. limit <= 0 uses the configured default.
func (r *Recorder) History(ctx context.Context, limit int) []model.Session {
	if limit <= 0 {
		limit = r.cfg.HistoryLimit
	}
	sessions, err := r.store.ListSessions(ctx, limit)
	if err != nil {
		r.storeFailed("history", err)
		return nil
	}
	return sessions
}

// TotalTime sums the duration of every ended session.
func (r *Recorder) TotalTime(ctx context.Context) time.Duration {
	total, err := r.store.TotalSessionDuration(ctx)
	if err != nil {
		r.storeFailed("total_time", err)
		return 0
	}
	return total
}

// AverageDuration averages the most recent sessions. Active sessions count
// with zero duration.
func (r *Recorder) AverageDuration(ctx context.Context) time.Duration {
	sessions, err := r.store.ListSessions(ctx, r.cfg.AverageWindow)
	if err != nil {
		r.storeFailed("average_duration", err)
		return 0
	}
	if len(sessions) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range sessions {
		total += s.Duration
	}
	return total / time.Duration(len(sessions))
}

// SignalStatistics summarizes buffered signals of the active session.
// It reports zeros when idle or when no signal of typ was recorded.
func (r *Recorder) SignalStatistics(typ model.SignalType) model.SignalStatistics {
	r.mu.Lock()
	defer r.mu.Unlock()

	var st model.SignalStatistics
	if r.current == nil {
		return st
	}
	var sum float64
	for _, sig := range r.buffer {
		if sig.Type != typ {
			continue
		}
		if st.Count == 0 || sig.Value < st.Min {
			st.Min = sig.Value
		}
		if st.Count == 0 || sig.Value > st.Max {
			st.Max = sig.Value
		}
		sum += sig.Value
		st.Count++
	}
	if st.Count > 0 {
		st.Average = sum / float64(st.Count)
	}
	return st
}

// PersistedSignalStatistics summarizes the stored signals of an ended session.
func (r *Recorder) PersistedSignalStatistics(ctx context.Context, sessionID string, typ model.SignalType) model.SignalStatistics {
	st, err := r.store.SignalStats(ctx, sessionID, typ)
	if err != nil {
		r.storeFailed("signal_stats", err)
		return model.SignalStatistics{}
	}
	return st
}

// Memories lists the memories created during a session, newest first.
func (r *Recorder) Memories(ctx context.Context, sessionID string) []model.Memory {
	if sessionID == "" {
		return nil
	}
	mems, err := r.store.QueryMemories(ctx, store.MemoryQuery{SessionID: sessionID})
	if err != nil {
		r.storeFailed("session_memories", err)
		return nil
	}
	return mems
}

func (r *Recorder) storeFailed(op string, err error) {
	r.logger.Warn("session store failure", zap.String("op", op), zap.Error(err))
	r.metrics.StoreError(op)
}
