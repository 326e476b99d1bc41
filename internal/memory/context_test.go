package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextPacksWithinBudget(t *testing.T) {
	ctx := context.Background()
	m, s, _ := newTestManager(t)

	for _, p := range []StoreParams{
		{Content: "music: likes jazz", Importance: 0.9},
		{Content: "music: plays piano", Importance: 0.8},
		{Content: "cooking: bakes bread", Importance: 0.9},
	} {
		_, err := m.Store(ctx, p)
		require.NoError(t, err)
	}

	res := m.Context(ctx, ContextParams{Query: "music", Limit: 5, Budget: 500})
	require.Len(t, res.Memories, 2)
	assert.Equal(t, "music: likes jazz", res.Memories[0].Content)
	assert.Equal(t, len("music: likes jazz")+len("music: plays piano"), res.Used)
	assert.Equal(t, "music: likes jazz\nmusic: plays piano", res.Text())

	got, err := s.GetMemory(ctx, res.Memories[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)
}

func TestContextExcerptsLastMemory(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.Store(ctx, StoreParams{Content: "story " + strings.Repeat("a", 150), Importance: 0.9})
	require.NoError(t, err)
	_, err = m.Store(ctx, StoreParams{Content: "story " + strings.Repeat("b", 300), Importance: 0.8})
	require.NoError(t, err)

	res := m.Context(ctx, ContextParams{Query: "story", Budget: 300})
	require.Len(t, res.Memories, 2)
	assert.False(t, res.Memories[0].Excerpt)
	assert.True(t, res.Memories[1].Excerpt)
	assert.True(t, strings.HasSuffix(res.Memories[1].Content, "..."))
	assert.Equal(t, 300, res.Used)
}

func TestContextSkipsExcerptBelowMinimum(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	_, err := m.Store(ctx, StoreParams{Content: "story " + strings.Repeat("a", 250), Importance: 0.9})
	require.NoError(t, err)
	_, err = m.Store(ctx, StoreParams{Content: "story " + strings.Repeat("b", 300), Importance: 0.8})
	require.NoError(t, err)

	res := m.Context(ctx, ContextParams{Query: "story", Budget: 300})
	require.Len(t, res.Memories, 1)
	assert.False(t, res.Memories[0].Excerpt)
}

func TestContextEmpty(t *testing.T) {
	m, _, _ := newTestManager(t)
	res := m.Context(context.Background(), ContextParams{Query: "nothing"})
	assert.Equal(t, DefaultContextBudget, res.Budget)
	assert.Empty(t, res.Memories)
	assert.Equal(t, "", res.Text())
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "caf", truncate("café", 4))
	assert.Equal(t, "café", truncate("café", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}
