package dialect

import (
	"encoding/json"
	"strings"
)

// Anthropic Messages 结构
// system 独立于 messages；content 可以是字符串或内容块数组
// （text / image / tool_use / tool_result）

type anthropicRequest struct {
	Model    string             `json:"model"`
	System   json.RawMessage    `json:"system"`
	Messages []anthropicMessage `json:"messages"`
	Tools    []anthropicTool    `json:"tools"`
}

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type anthropicTool struct {
	Name string `json:"name"`
}

type anthropicContentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Name    string          `json:"name"`    // tool_use
	Input   json.RawMessage `json:"input"`   // tool_use
	Content json.RawMessage `json:"content"` // tool_result
}

type anthropicResponse struct {
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func validateAnthropicRequest(raw []byte) (*RequestProfile, error) {
	var req anthropicRequest
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
	}

	// system 提示词归一化为一条 system 消息，计入内容长度
	if req.System != nil && string(req.System) != "null" {
		text, _, err := extractAnthropicContent(req.System)
		if err != nil {
			return nil, NewValidationError("system 类型错误: %v", err)
		}
		if text != "" {
			profile.Messages = append(profile.Messages, Message{Role: "system", Text: text})
		}
	}

	for i, msg := range req.Messages {
		if msg.Role == "" {
			return nil, NewValidationError("messages[%d] 缺少字段 role", i)
		}
		if msg.Content == nil || string(msg.Content) == "null" {
			return nil, NewValidationError("messages[%d] 缺少字段 content", i)
		}
		text, toolText, err := extractAnthropicContent(msg.Content)
		if err != nil {
			return nil, NewValidationError("messages[%d].content 类型错误: %v", i, err)
		}
		profile.Messages = append(profile.Messages, Message{
			Role:     msg.Role,
			Text:     text,
			ToolText: toolText,
		})
	}

	return profile, nil
}

// extractAnthropicContent 提取文本与工具块序列化文本
// tool_use 序列化为 name(input-json)，tool_result 序列化为 result(content-json)
func extractAnthropicContent(raw json.RawMessage) (string, string, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, "", nil
	}

	var blocks []anthropicContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", "", err
	}

	var text, toolText strings.Builder
	for _, block := range blocks {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			toolText.WriteString(block.Name)
			toolText.WriteString("(")
			toolText.Write(block.Input)
			toolText.WriteString(")")
		case "tool_result":
			toolText.WriteString("result(")
			toolText.Write(block.Content)
			toolText.WriteString(")")
		}
	}
	return text.String(), toolText.String(), nil
}

func validateAnthropicResponse(raw []byte) (*ResponseProfile, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, NewValidationError("响应不是合法的 JSON 对象: %v", err)
	}
	if len(resp.Content) == 0 {
		return nil, NewValidationError("content 不能为空")
	}

	profile := &ResponseProfile{
		Model:        resp.Model,
		FinishReason: resp.StopReason,
	}
	if resp.Usage != nil {
		profile.HasUsage = true
		profile.InputTokens = resp.Usage.InputTokens
		profile.OutputTokens = resp.Usage.OutputTokens
	}
	return profile, nil
}
