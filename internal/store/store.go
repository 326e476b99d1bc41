// Package store provides the record store interface and SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/companion-memory/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MemoryOrder selects the sort order of a memory query.
type MemoryOrder int

const (
	// OrderNewest sorts by creation time, newest first.
	OrderNewest MemoryOrder = iota
	// OrderRelevance sorts by importance, then last access, both descending.
	OrderRelevance
	// OrderEviction sorts by importance, then access count, then creation time, all ascending.
	OrderEviction
)

// MemoryQuery holds parameters for querying memories.
type MemoryQuery struct {
	Layer     model.Layer // empty means any layer
	Contains  string      // case and diacritic insensitive substring of content
	SessionID string
	Order     MemoryOrder
	Limit     int // <= 0 means no limit
}

// Snapshot is a full export of the store.
type Snapshot struct {
	Profile  *model.UserProfile     `json:"profile,omitempty"`
	Memories []model.Memory         `json:"memories"`
	Sessions []model.Session        `json:"sessions"`
	Signals  []model.BehaviorSignal `json:"signals"`
}

// Store defines the record store used by the memory and session layers.
type Store interface {
	// Profile returns the installation profile, creating it if absent.
	Profile(ctx context.Context) (*model.UserProfile, error)

	// SetProfileName updates the profile display name.
	SetProfileName(ctx context.Context, name string) error

	// PutMemory inserts a new memory.
	PutMemory(ctx context.Context, m *model.Memory) error

	// GetMemory fetches one memory by ID without touching its access history.
	GetMemory(ctx context.Context, id string) (*model.Memory, error)

	// QueryMemories lists memories matching q.
	QueryMemories(ctx context.Context, q MemoryQuery) ([]model.Memory, error)

	// CountMemories counts memories in a layer (empty layer counts all).
	CountMemories(ctx context.Context, layer model.Layer) (int, error)

	// TouchMemories increments access counts and sets last access time.
	TouchMemories(ctx context.Context, ids []string, at time.Time) error

	// SetLayer moves memories to a layer.
	SetLayer(ctx context.Context, ids []string, layer model.Layer) error

	// DeleteMemories permanently removes memories.
	DeleteMemories(ctx context.Context, ids []string) error

	// PutSession inserts a new session.
	PutSession(ctx context.Context, s *model.Session) error

	// EndSession seals a session with its end time and duration.
	EndSession(ctx context.Context, id string, endedAt time.Time, duration time.Duration) error

	// ListSessions lists sessions newest first.
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)

	// TotalSessionDuration sums the duration of every session.
	TotalSessionDuration(ctx context.Context) (time.Duration, error)

	// PutSignals inserts signals, owned by sessionID when non-empty.
	PutSignals(ctx context.Context, sessionID string, signals []model.BehaviorSignal) error

	// AttachSignals assigns already persisted signals to a session.
	AttachSignals(ctx context.Context, sessionID string, ids []string) error

	// SignalStats aggregates persisted signal values of a session.
	SignalStats(ctx context.Context, sessionID string, typ model.SignalType) (model.SignalStatistics, error)

	// Update runs fn inside a transaction. fn must only use the Store it is given.
	Update(ctx context.Context, fn func(Store) error) error

	// Wipe deletes every record.
	Wipe(ctx context.Context) error

	// Export returns every record.
	Export(ctx context.Context) (*Snapshot, error)

	// Import restores records verbatim. Returns the number of memories imported.
	Import(ctx context.Context, snap *Snapshot) (int, error)

	// Close closes the store.
	Close() error
}
