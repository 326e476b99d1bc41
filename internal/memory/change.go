package memory

import (
	"time"

	"github.com/rcliao/companion-memory/internal/model"
)

// ChangeKind names what happened to a group of memories.
type ChangeKind string

const (
	ChangeStored   ChangeKind = "stored"
	ChangeEvicted  ChangeKind = "evicted"
	ChangePromoted ChangeKind = "promoted"
	ChangeRecalled ChangeKind = "recalled"
)

// Change is delivered to the observer registered with WithObserver.
// Layer is the layer the memories are in after the change (for evictions, the
// layer they were removed from). Reason is set for evictions only.
type Change struct {
	Kind   ChangeKind  `json:"kind"`
	IDs    []string    `json:"ids"`
	Layer  model.Layer `json:"layer,omitempty"`
	Reason string      `json:"reason,omitempty"`
	At     time.Time   `json:"at"`
}
