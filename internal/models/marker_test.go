package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveMarkerFirstPatternWins(t *testing.T) {
	modelIDs := []string{"gpt-4o", "gpt-4o-mini", "o1-preview"}

	got := ResolveMarker(modelIDs, MarkerPatterns{"mini", "nano"})
	require.Equal(t, "gpt-4o-mini", got)

	// 前面的模式命中后，后面的模式不再参与
	got = ResolveMarker(modelIDs, MarkerPatterns{"nano", "mini"})
	require.Equal(t, "gpt-4o-mini", got, "nano 无命中时落到 mini")
}

func TestResolveMarkerLexicographicTieBreak(t *testing.T) {
	// 同一模式命中多个模型时取字典序最小者
	got := ResolveMarker([]string{"gpt-4o-mini-2", "gpt-4o-mini-1"}, MarkerPatterns{"mini"})
	require.Equal(t, "gpt-4o-mini-1", got)
}

func TestResolveMarkerCaseInsensitive(t *testing.T) {
	got := ResolveMarker([]string{"GPT-4o-Mini"}, MarkerPatterns{"mini"})
	require.Equal(t, "GPT-4o-Mini", got, "匹配不区分大小写，返回原始 ID")
}

func TestResolveMarkerNoMatch(t *testing.T) {
	require.Empty(t, ResolveMarker([]string{"command-r"}, MarkerPatterns{"mini", "nano"}))
	require.Empty(t, ResolveMarker(nil, MarkerPatterns{"mini"}))
}

func TestResolveMarkersPerProvider(t *testing.T) {
	set := ResolveMarkers("anthropic-messages", []string{
		"claude-3-5-haiku", "claude-3-7-sonnet", "claude-opus-4",
	})
	require.Equal(t, "claude-3-5-haiku", set.Fastest)
	require.Equal(t, "claude-opus-4", set.Best)
}

func TestResolveMarkersUnknownProviderUsesDefaults(t *testing.T) {
	set := ResolveMarkers("vllm-chat", []string{"qwen-max", "qwen-tiny"})
	require.Equal(t, "qwen-tiny", set.Fastest)
	require.Equal(t, "qwen-max", set.Best)
}

func TestResolveMarkersSameModelBothMarkers(t *testing.T) {
	set := ResolveMarkers("openai-chat", []string{"gpt-4o-mini"})
	require.Equal(t, "gpt-4o-mini", set.Fastest)
	require.Equal(t, "gpt-4o-mini", set.Best, "两个标记互相独立，可指向同一模型")
}
