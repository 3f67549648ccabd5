package dialect

import (
	"errors"
	"fmt"
)

// Tag 厂商方言标识
// 一个标签唯一决定请求/响应的结构校验器与使用的 Token 计数适配器
type Tag string

const (
	TagOpenAIChat            Tag = "openai-chat"
	TagAnthropicMessages     Tag = "anthropic-messages"
	TagGeminiGenerateContent Tag = "gemini-generateContent"
	TagBedrockConverse       Tag = "bedrock-converse"
	TagCohereChat            Tag = "cohere-chat"
	TagCerebrasChat          Tag = "cerebras-chat"
	TagMistralChat           Tag = "mistral-chat"
	TagVLLMChat              Tag = "vllm-chat"
	TagOllamaChat            Tag = "ollama-chat"
	TagZhipuaiChat           Tag = "zhipuai-chat"
)

// Token 计数适配器名称
const (
	TokenizerTiktoken  = "tiktoken"  // 精确词表编码（默认）
	TokenizerAnthropic = "anthropic" // 厂商官方计数接口
	TokenizerHeuristic = "heuristic" // 字符数/4 兜底
)

// ErrUnsupportedDialect 入站路由未映射到任何已注册方言
var ErrUnsupportedDialect = errors.New("不支持的厂商方言")

// ValidationError 请求/响应不符合方言声明的结构
// Reason 使用厂商无关的表述（缺少字段、类型错误）
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "结构校验失败: " + e.Reason
}

// NewValidationError 创建结构校验错误
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Message 从厂商载荷归一化出的单条消息
// Text 是纯文本内容；ToolText 是工具调用/工具结果序列化后的文本，
// 只参与 Token 估算，不参与规则引擎的内容长度判定
type Message struct {
	Role     string `json:"role"`
	Text     string `json:"text"`
	ToolText string `json:"tool_text,omitempty"`
}

// RequestProfile 请求校验通过后提取的归一化信息
// 流水线的后续阶段（估算、路由）只依赖这里，不再触碰厂商载荷
type RequestProfile struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	HasTools bool      `json:"has_tools"`
}

// ContentLength 所有消息纯文本内容的总长度
// 系统提示词计入总长（见规则引擎的长度条件语义）
func (p *RequestProfile) ContentLength() int {
	total := 0
	for _, m := range p.Messages {
		total += len(m.Text)
	}
	return total
}

// ResponseProfile 响应校验通过后提取的归一化信息
type ResponseProfile struct {
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	HasUsage     bool   `json:"has_usage"`
}

// Dialect 一种厂商方言：结构校验器对 + Token 计数适配器名称
// 多个 OpenAI 兼容方言共享同一校验实现，但保留各自的标签用于审计
type Dialect struct {
	Tag              Tag
	Tokenizer        string
	ValidateRequest  func(raw []byte) (*RequestProfile, error)
	ValidateResponse func(raw []byte) (*ResponseProfile, error)
}
