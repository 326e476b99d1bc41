// Package model defines the core memory data types.
package model

import (
	"fmt"
	"time"
)

// Layer is the memory tier a memory currently lives in.
type Layer string

const (
	LayerWorking  Layer = "working"
	LayerEpisodic Layer = "episodic"
	LayerSemantic Layer = "semantic"
)

// Layers lists every tier in promotion order.
var Layers = []Layer{LayerWorking, LayerEpisodic, LayerSemantic}

// ParseLayer validates a layer name.
func ParseLayer(s string) (Layer, error) {
	switch l := Layer(s); l {
	case LayerWorking, LayerEpisodic, LayerSemantic:
		return l, nil
	}
	return "", fmt.Errorf("invalid layer %q (valid: working, episodic, semantic)", s)
}

// UserProfile is the single owner of all memories and sessions of an installation.
type UserProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Preferences string    `json:"preferences,omitempty"`
}

// Memory represents a stored memory entry.
type Memory struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding,omitempty"`
	Importance   float64   `json:"importance"`
	AccessCount  int       `json:"access_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	Layer        Layer     `json:"layer"`
	Tags         []string  `json:"tags,omitempty"`
}

// MemoryStats holds per-layer memory counts.
type MemoryStats struct {
	WorkingCount  int `json:"working"`
	EpisodicCount int `json:"episodic"`
	SemanticCount int `json:"semantic"`
}

// Total is the sum of all layer counts.
func (s MemoryStats) Total() int {
	return s.WorkingCount + s.EpisodicCount + s.SemanticCount
}
