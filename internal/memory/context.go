package memory

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rcliao/companion-memory/internal/model"
)

// DefaultContextBudget is the character budget used when none is given.
const DefaultContextBudget = 2000

// minExcerpt is the smallest remaining budget worth filling with a partial memory.
const minExcerpt = 100

// ContextParams holds parameters for context assembly.
type ContextParams struct {
	Query  string
	Limit  int
	Budget int // max chars of memory content in the output
}

// ContextMemory is one packed memory.
type ContextMemory struct {
	ID         string      `json:"id"`
	Layer      model.Layer `json:"layer"`
	Importance float64     `json:"importance"`
	Content    string      `json:"content"`
	Excerpt    bool        `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context response.
type ContextResult struct {
	Budget   int             `json:"budget"`
	Used     int             `json:"used"`
	Memories []ContextMemory `json:"memories"`
}

// Text joins packed contents one per line.
func (r *ContextResult) Text() string {
	parts := make([]string, len(r.Memories))
	for i, m := range r.Memories {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// Context recalls memories for a query and packs them greedily into the
// budget. Recall reinforces the memories exactly as Retrieve does.
func (m *Manager) Context(ctx context.Context, p ContextParams) *ContextResult {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	result := &ContextResult{Budget: budget, Memories: []ContextMemory{}}

	for _, mem := range m.Retrieve(ctx, p.Query, p.Limit) {
		cm := ContextMemory{ID: mem.ID, Layer: mem.Layer, Importance: mem.Importance, Content: mem.Content}
		if result.Used+len(mem.Content) <= budget {
			result.Memories = append(result.Memories, cm)
			result.Used += len(mem.Content)
			continue
		}
		if remaining := budget - result.Used; remaining >= minExcerpt {
			cm.Content = truncate(mem.Content, remaining) + "..."
			cm.Excerpt = true
			result.Memories = append(result.Memories, cm)
			result.Used = budget
		}
		break
	}
	return result
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
