// Package memory implements the tiered memory engine: classification of new
// memories, working-tier cleanup, recall with reinforcement and consolidation.
//
// All public methods of Manager are single-writer: they are serialized by one
// mutex so callers on any goroutine observe a consistent store.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/companion-memory/internal/config"
	"github.com/rcliao/companion-memory/internal/embedding"
	"github.com/rcliao/companion-memory/internal/metrics"
	"github.com/rcliao/companion-memory/internal/model"
	"github.com/rcliao/companion-memory/internal/store"
)

// ErrEmptyContent is returned when storing a memory without content.
var ErrEmptyContent = errors.New("memory content is empty")

// DefaultImportance is used when a caller has no better estimate.
const DefaultImportance = 0.5

// Eviction reasons reported to observers and metrics.
const (
	ReasonStale    = "stale"
	ReasonCapacity = "capacity"
)

// StoreParams holds parameters for storing a memory.
type StoreParams struct {
	Content    string
	Importance float64
	Tags       []string
	SessionID  string
}

// ConsolidationResult counts the working memories moved by one sweep.
type ConsolidationResult struct {
	Semantic int `json:"semantic"`
	Episodic int `json:"episodic"`
}

// Manager owns tier policy over a store.Store.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	cfg      config.MemoryConfig
	logger   *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time
	observer func(Change)
	embedder embedding.Embedder
	ranker   Ranker
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics records activity on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithObserver registers fn to receive every change. fn runs after the
// mutation completes, outside the manager lock.
func WithObserver(fn func(Change)) Option {
	return func(m *Manager) { m.observer = fn }
}

// WithEmbedder attaches embeddings to newly stored memories.
func WithEmbedder(e embedding.Embedder) Option {
	return func(m *Manager) { m.embedder = e }
}

// WithRanker replaces the default lexical ranker.
func WithRanker(r Ranker) Option {
	return func(m *Manager) {
		if r != nil {
			m.ranker = r
		}
	}
}

// NewManager creates a Manager over st.
func NewManager(st store.Store, cfg config.MemoryConfig, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
		ranker: LexicalRanker{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "memory"))
	return m
}

// Classify returns the initial layer for a memory of the given importance.
// Importance at or above threshold is semantic; everything else starts in working.
func Classify(importance, threshold float64) model.Layer {
	if importance >= threshold {
		return model.LayerSemantic
	}
	return model.LayerWorking
}

// Classify applies the configured importance threshold.
func (m *Manager) Classify(importance float64) model.Layer {
	return Classify(importance, m.cfg.ImportanceThreshold)
}

// Store persists a new memory and then runs working-tier cleanup.
// A persistence failure is logged and returned; callers may ignore it.
func (m *Manager) Store(ctx context.Context, p StoreParams) (*model.Memory, error) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		m.logger.Warn("store skipped", zap.Error(ErrEmptyContent))
		return nil, ErrEmptyContent
	}

	profile, err := m.store.Profile(ctx)
	if err != nil {
		m.storeFailed("profile", err)
		return nil, err
	}

	importance := clampImportance(p.Importance)
	mem := &model.Memory{
		UserID:     profile.ID,
		SessionID:  p.SessionID,
		Content:    content,
		Importance: importance,
		Layer:      m.Classify(importance),
		Tags:       p.Tags,
	}

	if m.embedder != nil {
		vec, err := m.embedder.Embed(ctx, content)
		if err != nil {
			m.logger.Warn("embedding skipped", zap.Error(err))
		} else {
			mem.Embedding = vec
		}
	}

	m.mu.Lock()
	now := m.now()
	mem.CreatedAt, mem.LastAccessed = now, now
	if err := m.store.PutMemory(ctx, mem); err != nil {
		m.mu.Unlock()
		m.storeFailed("store", err)
		return nil, err
	}
	ev := m.cleanup(ctx, now)
	m.mu.Unlock()

	m.logger.Debug("memory stored",
		zap.String("id", mem.ID),
		zap.String("layer", string(mem.Layer)),
		zap.Float64("importance", importance))
	m.metrics.MemoryStored(string(mem.Layer))
	m.notify(Change{Kind: ChangeStored, IDs: []string{mem.ID}, Layer: mem.Layer, At: now})

	for _, e := range []struct {
		reason string
		ids    []string
	}{{ReasonStale, ev.stale}, {ReasonCapacity, ev.excess}} {
		if len(e.ids) == 0 {
			continue
		}
		m.metrics.MemoriesEvicted(e.reason, len(e.ids))
		m.notify(Change{Kind: ChangeEvicted, IDs: e.ids, Layer: model.LayerWorking, Reason: e.reason, At: now})
	}
	return mem, nil
}

type eviction struct {
	stale  []string
	excess []string
}

// cleanup deletes stale working memories, then trims the remaining working
// set to capacity, lowest (importance, access count, age) first.
// Caller holds m.mu.
func (m *Manager) cleanup(ctx context.Context, now time.Time) eviction {
	var ev eviction
	working, err := m.store.QueryMemories(ctx, store.MemoryQuery{
		Layer: model.LayerWorking,
		Limit: m.cfg.ScanLimit,
	})
	if err != nil {
		m.storeFailed("cleanup", err)
		return ev
	}

	remaining := working[:0:0]
	for _, mem := range working {
		if m.cfg.WorkingTTL > 0 && mem.AccessCount == 0 && now.Sub(mem.CreatedAt) > m.cfg.WorkingTTL {
			ev.stale = append(ev.stale, mem.ID)
			continue
		}
		remaining = append(remaining, mem)
	}

	if excess := len(remaining) - m.cfg.WorkingCapacity; excess > 0 {
		sort.SliceStable(remaining, func(i, j int) bool {
			a, b := remaining[i], remaining[j]
			if a.Importance != b.Importance {
				return a.Importance < b.Importance
			}
			if a.AccessCount != b.AccessCount {
				return a.AccessCount < b.AccessCount
			}
			return a.CreatedAt.Before(b.CreatedAt)
		})
		for _, mem := range remaining[:excess] {
			ev.excess = append(ev.excess, mem.ID)
		}
	}

	if len(ev.stale) == 0 && len(ev.excess) == 0 {
		return ev
	}
	err = m.store.Update(ctx, func(tx store.Store) error {
		return tx.DeleteMemories(ctx, append(append([]string{}, ev.stale...), ev.excess...))
	})
	if err != nil {
		m.storeFailed("cleanup", err)
		return eviction{}
	}
	m.logger.Debug("working memory cleaned",
		zap.Int("stale", len(ev.stale)),
		zap.Int("excess", len(ev.excess)))
	return ev
}

// Retrieve returns memories whose content contains query, ordered by the
// ranker and capped at limit. Every returned memory is reinforced: its access
// count grows by one and its last access time is refreshed.
func (m *Manager) Retrieve(ctx context.Context, query string, limit int) []model.Memory {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = m.cfg.DefaultRetrieveLimit
	}

	fetch := limit
	if _, lexical := m.ranker.(LexicalRanker); !lexical && m.cfg.ScanLimit > fetch {
		fetch = m.cfg.ScanLimit
	}

	m.mu.Lock()
	candidates, err := m.store.QueryMemories(ctx, store.MemoryQuery{
		Contains: query,
		Order:    store.OrderRelevance,
		Limit:    fetch,
	})
	if err != nil {
		m.mu.Unlock()
		m.storeFailed("retrieve", err)
		return nil
	}

	results := candidates
	if len(candidates) > 1 {
		ranked, err := m.ranker.Rank(ctx, query, candidates)
		if err != nil {
			m.logger.Warn("ranker failed, using lexical order",
				zap.String("ranker", m.ranker.Name()), zap.Error(err))
		} else {
			results = ranked
		}
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		m.mu.Unlock()
		m.metrics.Recall(0)
		return nil
	}

	now := m.now()
	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	touched := true
	if err := m.store.TouchMemories(ctx, ids, now); err != nil {
		touched = false
		m.storeFailed("touch", err)
	}
	m.mu.Unlock()

	if touched {
		for i := range results {
			results[i].AccessCount++
			results[i].LastAccessed = now
		}
		m.notify(Change{Kind: ChangeRecalled, IDs: ids, At: now})
	}
	m.metrics.Recall(len(results))
	return results
}

// RetrieveByLayer returns the newest memories of exactly one layer.
func (m *Manager) RetrieveByLayer(ctx context.Context, layer model.Layer, limit int) []model.Memory {
	if _, err := model.ParseLayer(string(layer)); err != nil {
		m.logger.Warn("retrieve by layer", zap.Error(err))
		return nil
	}
	if limit <= 0 {
		limit = m.cfg.DefaultLayerLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	mems, err := m.store.QueryMemories(ctx, store.MemoryQuery{
		Layer: layer,
		Order: store.OrderNewest,
		Limit: limit,
	})
	if err != nil {
		m.storeFailed("retrieve_by_layer", err)
		return nil
	}
	return mems
}

// Consolidate sweeps the working layer once. Important, frequently recalled
// memories become semantic; other recalled memories become episodic; the rest
// stay in working.
func (m *Manager) Consolidate(ctx context.Context) (ConsolidationResult, error) {
	m.mu.Lock()
	working, err := m.store.QueryMemories(ctx, store.MemoryQuery{Layer: model.LayerWorking})
	if err != nil {
		m.mu.Unlock()
		m.storeFailed("consolidate", err)
		return ConsolidationResult{}, err
	}

	var semantic, episodic []string
	for _, mem := range working {
		switch {
		case mem.Importance > m.cfg.ImportanceThreshold && mem.AccessCount > m.cfg.SemanticAccessCount:
			semantic = append(semantic, mem.ID)
		case mem.AccessCount > m.cfg.EpisodicAccessCount:
			episodic = append(episodic, mem.ID)
		}
	}

	if len(semantic) > 0 || len(episodic) > 0 {
		err = m.store.Update(ctx, func(tx store.Store) error {
			if err := tx.SetLayer(ctx, semantic, model.LayerSemantic); err != nil {
				return err
			}
			return tx.SetLayer(ctx, episodic, model.LayerEpisodic)
		})
	}
	now := m.now()
	m.mu.Unlock()

	if err != nil {
		m.storeFailed("consolidate", err)
		return ConsolidationResult{}, err
	}

	res := ConsolidationResult{Semantic: len(semantic), Episodic: len(episodic)}
	m.logger.Debug("memories consolidated",
		zap.Int("scanned", len(working)),
		zap.Int("semantic", res.Semantic),
		zap.Int("episodic", res.Episodic))
	if res.Semantic > 0 {
		m.metrics.MemoriesPromoted(string(model.LayerSemantic), res.Semantic)
		m.notify(Change{Kind: ChangePromoted, IDs: semantic, Layer: model.LayerSemantic, At: now})
	}
	if res.Episodic > 0 {
		m.metrics.MemoriesPromoted(string(model.LayerEpisodic), res.Episodic)
		m.notify(Change{Kind: ChangePromoted, IDs: episodic, Layer: model.LayerEpisodic, At: now})
	}
	return res, nil
}

// Stats counts memories per layer. Counts are capped at the configured stats
// limit; a layer whose count cannot be read reports zero.
func (m *Manager) Stats(ctx context.Context) model.MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := func(layer model.Layer) int {
		n, err := m.store.CountMemories(ctx, layer)
		if err != nil {
			m.storeFailed("stats", err)
			return 0
		}
		if m.cfg.StatsLimit > 0 && n > m.cfg.StatsLimit {
			n = m.cfg.StatsLimit
		}
		m.metrics.LayerSize(string(layer), n)
		return n
	}
	return model.MemoryStats{
		WorkingCount:  count(model.LayerWorking),
		EpisodicCount: count(model.LayerEpisodic),
		SemanticCount: count(model.LayerSemantic),
	}
}

func (m *Manager) storeFailed(op string, err error) {
	m.logger.Warn("memory store failure", zap.String("op", op), zap.Error(err))
	m.metrics.StoreError(op)
}

func (m *Manager) notify(c Change) {
	if m.observer != nil {
		m.observer(c)
	}
}

func clampImportance(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
