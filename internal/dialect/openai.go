package dialect

import (
	"encoding/json"
	"strings"
)

// OpenAI Chat Completions 结构
// Cerebras / Mistral / vLLM / Ollama / Zhipuai 与其线上兼容，复用本校验器

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Tools    []openAITool    `json:"tools"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   json.RawMessage  `json:"content"`
	Name      string           `json:"name"`
	ToolCalls []openAIToolCall `json:"tool_calls"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func validateOpenAIRequest(raw []byte) (*RequestProfile, error) {
	var req openAIRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewValidationError("载荷不是合法的 JSON 对象: %v", err)
	}
	if req.Model == "" {
		return nil, NewValidationError("缺少字段 model")
	}
	if len(req.Messages) == 0 {
		return nil, NewValidationError("messages 不能为空")
	}

	profile := &RequestProfile{
		Model:    req.Model,
		HasTools: len(req.Tools) > 0,
		Messages: make([]Message, 0, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		if msg.Role == "" {
			return nil, NewValidationError("messages[%d] 缺少字段 role", i)
		}

		text, err := extractOpenAIContent(msg.Content)
		if err != nil {
			return nil, NewValidationError("messages[%d].content 类型错误: %v", i, err)
		}
		// assistant 消息可以只携带 tool_calls 而无正文
		if text == "" && len(msg.ToolCalls) == 0 && msg.Content == nil {
			return nil, NewValidationError("messages[%d] 缺少字段 content", i)
		}

		var toolText strings.Builder
		for _, call := range msg.ToolCalls {
			toolText.WriteString(call.Function.Name)
			toolText.WriteString("(")
			toolText.WriteString(call.Function.Arguments)
			toolText.WriteString(")")
		}

		profile.Messages = append(profile.Messages, Message{
			Role:     msg.Role,
			Text:     text,
			ToolText: toolText.String(),
		})
	}

	return profile, nil
}

// extractOpenAIContent 提取消息文本
// content 可以是字符串，也可以是带类型的内容块数组（只累计 text 块）
func extractOpenAIContent(raw json.RawMessage) (string, error) {
	if raw == nil || string(raw) == "null" {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var parts []openAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, part := range parts {
		if part.Type == "text" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func validateOpenAIResponse(raw []byte) (*ResponseProfile, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, NewValidationError("响应不是合法的 JSON 对象: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewValidationError("choices 不能为空")
	}

	profile := &ResponseProfile{
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
	}
	if resp.Usage != nil {
		profile.HasUsage = true
		profile.InputTokens = resp.Usage.PromptTokens
		profile.OutputTokens = resp.Usage.CompletionTokens
	}
	return profile, nil
}
