package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/rcliao/companion-memory/internal/embedding"
	"github.com/rcliao/companion-memory/internal/model"
)

// Ranker orders recall candidates. Candidates arrive already matched against
// the query and sorted by importance, then last access, both descending.
type Ranker interface {
	Name() string
	Rank(ctx context.Context, query string, candidates []model.Memory) ([]model.Memory, error)
}

// LexicalRanker keeps the store's substring match order.
type LexicalRanker struct{}

func (LexicalRanker) Name() string { return "lexical" }

func (LexicalRanker) Rank(_ context.Context, _ string, candidates []model.Memory) ([]model.Memory, error) {
	return candidates, nil
}

// EmbeddingRanker reorders candidates by cosine similarity between the query
// embedding and each memory's stored embedding. Memories without an embedding
// score zero. Equal scores keep lexical order.
type EmbeddingRanker struct {
	Embedder embedding.Embedder
}

func (EmbeddingRanker) Name() string { return "embedding" }

func (r EmbeddingRanker) Rank(ctx context.Context, query string, candidates []model.Memory) ([]model.Memory, error) {
	if r.Embedder == nil {
		return nil, fmt.Errorf("embedding ranker: no embedder configured")
	}
	qv, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		scores[c.ID] = embedding.CosineSimilarity(qv, c.Embedding)
	}
	out := append([]model.Memory(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		return scores[out[i].ID] > scores[out[j].ID]
	})
	return out, nil
}

// NewRanker returns the ranker named by the retrieval configuration.
func NewRanker(name string, e embedding.Embedder) (Ranker, error) {
	switch name {
	case "", "lexical":
		return LexicalRanker{}, nil
	case "embedding":
		if e == nil {
			return nil, fmt.Errorf("ranker %q requires an embedding provider", name)
		}
		return EmbeddingRanker{Embedder: e}, nil
	}
	return nil, fmt.Errorf("unknown ranker %q", name)
}
