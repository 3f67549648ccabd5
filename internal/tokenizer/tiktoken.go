package tokenizer

import (
	"context"
	"fmt"

	"gateway/internal/dialect"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenAdapter 精确词表适配器
// 用已知词表对文本编码并取编码长度，是大多数厂商的默认估算方式
type TiktokenAdapter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenAdapter 创建精确词表适配器
// encodingName 为空时使用 cl100k_base
func NewTiktokenAdapter(encodingName string) (*TiktokenAdapter, error) {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("加载词表失败: %w", err)
	}
	return &TiktokenAdapter{encoding: enc}, nil
}

// Name 适配器名称
func (a *TiktokenAdapter) Name() string {
	return dialect.TokenizerTiktoken
}

// CountTokens 逐条消息编码并累加
func (a *TiktokenAdapter) CountTokens(ctx context.Context, messages []dialect.Message) (int, error) {
	total := 0
	for _, msg := range messages {
		total += len(a.encoding.Encode(messageText(msg), nil, nil))
	}
	return total, nil
}
