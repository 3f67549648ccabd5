package tokenizer

import (
	"context"

	"gateway/internal/dialect"
)

// Adapter Token 计数适配器
// 返回值为非负整数，且对固定适配器关于文本长度单调不减；
// 估算值只用于调用前的成本预估，计费以厂商响应里的实际用量优先
type Adapter interface {
	// CountTokens 估算消息列表的 Token 总数
	CountTokens(ctx context.Context, messages []dialect.Message) (int, error)

	// Name 适配器名称（与方言注册表里的 Tokenizer 字段对应）
	Name() string
}

// Estimate 一次估算的结果
// Degraded 表示走了启发式兜底，是质量标记而非错误
type Estimate struct {
	InputTokens int  `json:"input_tokens"`
	Degraded    bool `json:"degraded"`
}

// Set 适配器集合
// 进程启动时构建一次并注入流水线；未命中或适配器出错时落到启发式兜底
type Set struct {
	adapters map[string]Adapter
	fallback Adapter
}

// NewSet 创建适配器集合
func NewSet(fallback Adapter, adapters ...Adapter) *Set {
	s := &Set{
		adapters: make(map[string]Adapter, len(adapters)),
		fallback: fallback,
	}
	for _, a := range adapters {
		s.adapters[a.Name()] = a
	}
	return s
}

// Estimate 用指定适配器估算，适配器缺失或出错时降级到启发式兜底
func (s *Set) Estimate(ctx context.Context, name string, messages []dialect.Message) Estimate {
	if adapter, ok := s.adapters[name]; ok {
		if count, err := adapter.CountTokens(ctx, messages); err == nil {
			return Estimate{InputTokens: count}
		}
	}
	count, _ := s.fallback.CountTokens(ctx, messages)
	return Estimate{InputTokens: count, Degraded: true}
}

// messageText 参与计数的完整文本：角色标签前缀 + 正文 + 序列化的工具块
func messageText(m dialect.Message) string {
	text := m.Role + ": " + m.Text
	if m.ToolText != "" {
		text += m.ToolText
	}
	return text
}
