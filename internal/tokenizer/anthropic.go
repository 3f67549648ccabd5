package tokenizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gateway/internal/dialect"
	"gateway/pkg/httputil"
)

// AnthropicAdapter 厂商声明式计数适配器
// Anthropic 自己发布了计数接口，直接调用它而不是本地词表；
// 契约与其他适配器一致，只是计数后端不同
type AnthropicAdapter struct {
	client       *httputil.Client
	baseURL      string
	defaultModel string
}

// NewAnthropicAdapter 创建 Anthropic 计数适配器
// API Key 从 ANTHROPIC_API_KEY 读取；缺失时 CountTokens 返回错误，
// 由适配器集合降级到启发式兜底
func NewAnthropicAdapter(baseURL, apiVersion string) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if apiVersion == "" {
		apiVersion = "2023-06-01"
	}
	client := httputil.NewClient(
		httputil.WithTimeout(10*time.Second),
		httputil.WithHeaders(map[string]string{
			"anthropic-version": apiVersion,
		}),
	)
	return &AnthropicAdapter{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: "claude-3-5-sonnet-latest",
	}
}

// Name 适配器名称
func (a *AnthropicAdapter) Name() string {
	return dialect.TokenizerAnthropic
}

type countTokensRequest struct {
	Model    string            `json:"model"`
	System   string            `json:"system,omitempty"`
	Messages []countTokensTurn `json:"messages"`
}

type countTokensTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type countTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// CountTokens 调用厂商计数接口
func (a *AnthropicAdapter) CountTokens(ctx context.Context, messages []dialect.Message) (int, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return 0, fmt.Errorf("ANTHROPIC_API_KEY 未配置")
	}

	req := countTokensRequest{Model: a.defaultModel}
	for _, msg := range messages {
		text := msg.Text
		if msg.ToolText != "" {
			text += msg.ToolText
		}
		if msg.Role == "system" {
			req.System += text
			continue
		}
		role := msg.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		req.Messages = append(req.Messages, countTokensTurn{Role: role, Content: text})
	}
	// 计数接口要求 messages 非空
	if len(req.Messages) == 0 {
		req.Messages = append(req.Messages, countTokensTurn{Role: "user", Content: ""})
	}

	payload, err := json.Marshal(&req)
	if err != nil {
		return 0, fmt.Errorf("序列化计数请求失败: %w", err)
	}

	// 鉴权头逐请求传入，客户端自身保持只读，可被并发复用
	url := a.baseURL + "/v1/messages/count_tokens"
	status, respBody, err := a.client.PostRaw(ctx, url, payload, map[string]string{
		"x-api-key": apiKey,
	})
	if err != nil {
		return 0, fmt.Errorf("调用计数接口失败: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("计数接口返回错误状态: %d", status)
	}

	var resp countTokensResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("解析计数响应失败: %w", err)
	}
	if resp.InputTokens < 0 {
		return 0, fmt.Errorf("计数接口返回非法值: %d", resp.InputTokens)
	}
	return resp.InputTokens, nil
}
