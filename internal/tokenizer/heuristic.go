package tokenizer

import (
	"context"

	"gateway/internal/dialect"
)

// HeuristicAdapter 启发式兜底适配器
// 每条消息按 ceil(字符数/4) 估算；只在没有精确词表也没有厂商计数接口时使用，
// 使用时估算结果会带上降级标记
type HeuristicAdapter struct{}

// NewHeuristicAdapter 创建启发式兜底适配器
func NewHeuristicAdapter() *HeuristicAdapter {
	return &HeuristicAdapter{}
}

// Name 适配器名称
func (a *HeuristicAdapter) Name() string {
	return dialect.TokenizerHeuristic
}

// CountTokens 按字符数估算
func (a *HeuristicAdapter) CountTokens(ctx context.Context, messages []dialect.Message) (int, error) {
	total := 0
	for _, msg := range messages {
		length := len(messageText(msg))
		total += (length + 3) / 4
	}
	return total, nil
}
