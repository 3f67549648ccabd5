package tokenizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gateway/internal/dialect"

	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	name  string
	count int
	err   error
}

func (s *stubAdapter) CountTokens(ctx context.Context, messages []dialect.Message) (int, error) {
	return s.count, s.err
}

func (s *stubAdapter) Name() string { return s.name }

func TestHeuristicCountIsCharsOverFour(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicAdapter()

	// "user: " 前缀 6 字节 + 正文 10 字节 = 16 字节 → 4 个 Token
	count, err := h.CountTokens(ctx, []dialect.Message{
		{Role: "user", Text: strings.Repeat("a", 10)},
	})
	require.NoError(t, err)
	require.Equal(t, 4, count)

	// 空消息也至少产生角色前缀的份额
	count, err = h.CountTokens(ctx, []dialect.Message{{Role: "user"}})
	require.NoError(t, err)
	require.Greater(t, count, 0)
}

func TestHeuristicIsMonotonic(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicAdapter()

	prev := 0
	for _, n := range []int{1, 10, 100, 1000} {
		count, err := h.CountTokens(ctx, []dialect.Message{
			{Role: "user", Text: strings.Repeat("x", n)},
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, count, prev, "更长的文本不应得到更小的估算")
		prev = count
	}
}

func TestToolTextCountsTowardTokens(t *testing.T) {
	ctx := context.Background()
	h := NewHeuristicAdapter()

	withoutTool, err := h.CountTokens(ctx, []dialect.Message{{Role: "user", Text: "查询"}})
	require.NoError(t, err)
	withTool, err := h.CountTokens(ctx, []dialect.Message{
		{Role: "user", Text: "查询", ToolText: `lookup({"city":"北京"})`},
	})
	require.NoError(t, err)
	require.Greater(t, withTool, withoutTool, "工具块应计入 Token 估算")
}

func TestSetFallsBackOnUnknownAdapter(t *testing.T) {
	ctx := context.Background()
	set := NewSet(NewHeuristicAdapter())

	est := set.Estimate(ctx, "tiktoken", []dialect.Message{{Role: "user", Text: "hello"}})
	require.True(t, est.Degraded, "适配器缺失应降级")
	require.Greater(t, est.InputTokens, 0)
}

func TestSetFallsBackOnAdapterError(t *testing.T) {
	ctx := context.Background()
	broken := &stubAdapter{name: "anthropic", err: errors.New("上游不可用")}
	set := NewSet(NewHeuristicAdapter(), broken)

	est := set.Estimate(ctx, "anthropic", []dialect.Message{{Role: "user", Text: "hello"}})
	require.True(t, est.Degraded)
	require.Greater(t, est.InputTokens, 0, "降级后仍应给出非负估算")
}

func TestSetUsesMatchingAdapter(t *testing.T) {
	ctx := context.Background()
	exact := &stubAdapter{name: "tiktoken", count: 42}
	set := NewSet(NewHeuristicAdapter(), exact)

	est := set.Estimate(ctx, "tiktoken", []dialect.Message{{Role: "user", Text: "hello"}})
	require.False(t, est.Degraded)
	require.Equal(t, 42, est.InputTokens)
}
