package dialect

import (
	"encoding/json"
	"strings"
)

// Bedrock Converse 结构
// modelId 在 URL 路径中，由 ingress 层补入请求体；
// content 为内容块数组：text / image / toolUse / toolResult

type bedrockRequest struct {
	ModelID  string           `json:"modelId"`
	System   []bedrockBlock   `json:"system"`
	Messages []bedrockMessage `json:"messages"`
	ToolConfig *struct {
		Tools []json.RawMessage `json:"tools"`
	} `json:"toolConfig"`
}

type bedrockMessage struct {
	Role    string         `json:"role"`
	Content []bedrockBlock `json:"content"`
}

type bedrockBlock struct {
	Text    string `json:"text"`
	ToolUse *struct {
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"toolUse"`
	ToolResult *struct {
		Content json.RawMessage `json:"content"`
	} `json:"toolResult"`
}

type bedrockResponse struct {
	Output struct {
		Message *bedrockMessage `json:"message"`
	} `json:"output"`
	StopReason string `json:"stopReason"`
	Usage      *struct {
		InputTokens  int `json:"inputTokens"`
		OutputTokens int `json:"outputTokens"`
	} `json:"usage"`
}

func validateBedrockRequest(raw []byte) (*RequestProfile, error) {
	var req bedrockRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewValidationError("载荷不是合法的 JSON 对象: %v", err)
	}
	if req.ModelID == "" {
		return nil, NewValidationError("缺少字段 modelId")
	}
	if len(req.Messages) == 0 {
		return nil, NewValidationError("messages 不能为空")
	}

	profile := &RequestProfile{
		Model:    req.ModelID,
		HasTools: req.ToolConfig != nil && len(req.ToolConfig.Tools) > 0,
	}

	if len(req.System) > 0 {
		text, _ := collectBedrockBlocks(req.System)
		if text != "" {
			profile.Messages = append(profile.Messages, Message{Role: "system", Text: text})
		}
	}

	for i, msg := range req.Messages {
		if msg.Role == "" {
			return nil, NewValidationError("messages[%d] 缺少字段 role", i)
		}
		if len(msg.Content) == 0 {
			return nil, NewValidationError("messages[%d].content 不能为空", i)
		}
		text, toolText := collectBedrockBlocks(msg.Content)
		profile.Messages = append(profile.Messages, Message{
			Role:     msg.Role,
			Text:     text,
			ToolText: toolText,
		})
	}

	return profile, nil
}

func collectBedrockBlocks(blocks []bedrockBlock) (string, string) {
	var text, toolText strings.Builder
	for _, block := range blocks {
		if block.Text != "" {
			text.WriteString(block.Text)
		}
		if block.ToolUse != nil {
			toolText.WriteString(block.ToolUse.Name)
			toolText.WriteString("(")
			toolText.Write(block.ToolUse.Input)
			toolText.WriteString(")")
		}
		if block.ToolResult != nil {
			toolText.WriteString("result(")
			toolText.Write(block.ToolResult.Content)
			toolText.WriteString(")")
		}
	}
	return text.String(), toolText.String()
}

func validateBedrockResponse(raw []byte) (*ResponseProfile, error) {
	var resp bedrockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, NewValidationError("响应不是合法的 JSON 对象: %v", err)
	}
	if resp.Output.Message == nil {
		return nil, NewValidationError("缺少字段 output.message")
	}

	profile := &ResponseProfile{
		FinishReason: resp.StopReason,
	}
	if resp.Usage != nil {
		profile.HasUsage = true
		profile.InputTokens = resp.Usage.InputTokens
		profile.OutputTokens = resp.Usage.OutputTokens
	}
	return profile, nil
}
