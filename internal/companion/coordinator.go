// Package companion turns face, audio and voice events into memory writes
// and behavior signals. A Coordinator applies events one at a time on the
// goroutine running Run.
package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/companion-memory/internal/memory"
	"github.com/rcliao/companion-memory/internal/metrics"
	"github.com/rcliao/companion-memory/internal/model"
	"github.com/rcliao/companion-memory/internal/session"
)

// ErrStopped is returned by Submit and Do once Run has returned.
var ErrStopped = errors.New("coordinator stopped")

// Importance and recall settings for conversation memories.
const (
	InputImportance  = 0.7
	OutputImportance = 0.6
	ContextLimit     = 3
)

var (
	inputTags  = []string{"speech", "input", "user"}
	outputTags = []string{"speech", "output"}
)

// State is a snapshot of what the companion is currently doing.
type State struct {
	Expression Expression `json:"expression"`
	Listening  bool       `json:"listening"`
	Speaking   bool       `json:"speaking"`
}

// Stats combines memory and session statistics.
type Stats struct {
	Memory                 model.MemoryStats `json:"memory"`
	TotalMemories          int               `json:"total_memories"`
	TotalSessionTime       time.Duration     `json:"total_session_time"`
	AverageSessionDuration time.Duration     `json:"average_session_duration"`
}

type envelope struct {
	ctx   context.Context
	event Event
	done  chan error // nil for fire-and-forget
}

// Coordinator is the single serialized entry point for companion events.
type Coordinator struct {
	memory    *memory.Manager
	session   *session.Recorder
	responder Responder
	speaker   Speaker
	logger    *zap.Logger
	metrics   *metrics.Collector

	events  chan envelope
	stopped chan struct{}
	runOnce sync.Once

	mu    sync.Mutex
	state State
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records handled events on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithResponder replaces the rule-based responder.
func WithResponder(r Responder) Option {
	return func(c *Coordinator) { c.responder = r }
}

// WithSpeaker sets the sink for spoken replies.
func WithSpeaker(s Speaker) Option {
	return func(c *Coordinator) { c.speaker = s }
}

// WithQueueSize sets how many submitted events may wait for Run.
func WithQueueSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.events = make(chan envelope, n)
		}
	}
}

// New creates a Coordinator. Call Run to start applying events.
func New(mem *memory.Manager, rec *session.Recorder, opts ...Option) *Coordinator {
	c := &Coordinator{
		memory:    mem,
		session:   rec,
		responder: RuleResponder{},
		speaker:   SpeakerFunc(func(context.Context, string) error { return nil }),
		logger:    zap.NewNop(),
		events:    make(chan envelope, 64),
		stopped:   make(chan struct{}),
		state:     State{Expression: ExpressionNeutral},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "companion"))
	return c
}

// Start begins a passive session for the installation profile.
func (c *Coordinator) Start(ctx context.Context) (*model.Session, error) {
	sess, err := c.session.Start(ctx, model.SessionPassive)
	if err != nil {
		return sess, err
	}
	c.logger.Info("companion started", zap.String("session", sess.ID))
	return sess, nil
}

// Stop ends the active session and then consolidates memories. Consolidation
// runs even when no session was active.
func (c *Coordinator) Stop(ctx context.Context) (memory.ConsolidationResult, error) {
	_, endErr := c.session.End(ctx)
	if errors.Is(endErr, session.ErrNoActiveSession) {
		endErr = nil
	}
	res, err := c.memory.Consolidate(ctx)
	c.setState(func(s *State) { *s = State{Expression: ExpressionNeutral} })
	c.logger.Info("companion stopped",
		zap.Int("semantic", res.Semantic),
		zap.Int("episodic", res.Episodic))
	return res, errors.Join(endErr, err)
}

// Run applies submitted events in order until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return fmt.Errorf("coordinator already running")
	}
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.events:
			err := c.handle(env.ctx, env.event)
			c.metrics.EventHandled(env.event.Kind(), err)
			if env.done != nil {
				env.done <- err
				continue
			}
			if err != nil {
				c.logger.Warn("event failed", zap.String("event", env.event.Kind()), zap.Error(err))
			}
		}
	}
}

// Submit queues ev without waiting for it to be applied. Safe for concurrent use.
func (c *Coordinator) Submit(ctx context.Context, ev Event) error {
	return c.enqueue(ctx, envelope{ctx: context.WithoutCancel(ctx), event: ev})
}

// Do queues ev and waits until Run has applied it.
func (c *Coordinator) Do(ctx context.Context, ev Event) error {
	done := make(chan error, 1)
	if err := c.enqueue(ctx, envelope{ctx: ctx, event: ev, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

func (c *Coordinator) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	select {
	case c.events <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

// State returns the current companion state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats reports memory counts and session time.
func (c *Coordinator) Stats(ctx context.Context) Stats {
	ms := c.memory.Stats(ctx)
	return Stats{
		Memory:                 ms,
		TotalMemories:          ms.Total(),
		TotalSessionTime:       c.session.TotalTime(ctx),
		AverageSessionDuration: c.session.AverageDuration(ctx),
	}
}

func (c *Coordinator) handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case ExpressionChanged:
		if _, err := ParseExpression(string(e.Expression)); err != nil {
			return err
		}
		c.setState(func(s *State) { s.Expression = e.Expression })
		return c.signal(ctx, model.SignalExpression, e.Expression.Value(),
			map[string]any{"expression": string(e.Expression)})
	case SpeechDetected:
		c.setState(func(s *State) {
			s.Listening = true
			s.Expression = ExpressionListening
		})
	case SilenceDetected:
		c.setState(func(s *State) {
			s.Listening = false
			if !s.Speaking {
				s.Expression = ExpressionNeutral
			}
		})
	case SpeechFinished:
		c.setState(func(s *State) { s.Speaking = false })
	case Amplitude:
		return c.signal(ctx, model.SignalVoiceAmplitude, e.Value, nil)
	case HeadPose:
		return c.signal(ctx, model.SignalHeadPose, e.Value, nil)
	case Attention:
		return c.signal(ctx, model.SignalAttention, e.Value, nil)
	case Engagement:
		return c.signal(ctx, model.SignalEngagement, e.Value, nil)
	case UtteranceFinished:
		return c.converse(ctx, e.Text)
	case Speak:
		return c.speak(ctx, e.Text)
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
	return nil
}

// signal records a behavior signal. Signals outside a session are dropped.
func (c *Coordinator) signal(ctx context.Context, typ model.SignalType, v float64, meta map[string]any) error {
	err := c.session.RecordSignal(ctx, typ, v, meta)
	if errors.Is(err, session.ErrNoActiveSession) {
		return nil
	}
	return err
}

func (c *Coordinator) converse(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.remember(ctx, "User said: "+text, InputImportance, inputTags)

	recalled := c.memory.Retrieve(ctx, text, ContextLimit)
	parts := make([]string, len(recalled))
	for i, m := range recalled {
		parts[i] = m.Content
	}
	c.logger.Debug("context recalled", zap.Int("memories", len(recalled)))

	reply, err := c.responder.Respond(ctx, text, strings.Join(parts, "\n"))
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return c.speak(ctx, reply)
}

func (c *Coordinator) speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.remember(ctx, "I said: "+text, OutputImportance, outputTags)
	c.setState(func(s *State) { s.Speaking = true })
	if err := c.speaker.Speak(ctx, text); err != nil {
		c.setState(func(s *State) { s.Speaking = false })
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// remember stores a conversation memory in the active session. Failures are
// logged by the memory manager and otherwise ignored.
func (c *Coordinator) remember(ctx context.Context, content string, importance float64, tags []string) {
	var sessionID string
	if cur := c.session.Current(); cur != nil {
		sessionID = cur.ID
	}
	c.memory.Store(ctx, memory.StoreParams{
		Content:    content,
		Importance: importance,
		Tags:       tags,
		SessionID:  sessionID,
	})
}

func (c *Coordinator) setState(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
}
