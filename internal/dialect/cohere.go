package dialect

import (
	"encoding/json"
	"strings"
)

// Cohere Chat 结构
// 当前消息在 message 字段，历史在 chat_history（role 为 USER/CHATBOT/SYSTEM）

type cohereRequest struct {
	Model       string `json:"model"`
	Message     string `json:"message"`
	Preamble    string `json:"preamble"`
	ChatHistory []struct {
		Role    string `json:"role"`
		Message string `json:"message"`
	} `json:"chat_history"`
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

type cohereResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Meta         *struct {
		BilledUnits *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
	ToolCalls []struct {
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
	} `json:"tool_calls"`
}

func validateCohereRequest(raw []byte) (*RequestProfile, error) {
	var req cohereRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewValidationError("载荷不是合法的 JSON 对象: %v", err)
	}
	if req.Model == "" {
		return nil, NewValidationError("缺少字段 model")
	}
	if req.Message == "" {
		return nil, NewValidationError("缺少字段 message")
	}

	profile := &RequestProfile{
		Model:    req.Model,
		HasTools: len(req.Tools) > 0,
	}

	if req.Preamble != "" {
		profile.Messages = append(profile.Messages, Message{Role: "system", Text: req.Preamble})
	}
	for _, turn := range req.ChatHistory {
		profile.Messages = append(profile.Messages, Message{
			Role: strings.ToLower(turn.Role),
			Text: turn.Message,
		})
	}
	profile.Messages = append(profile.Messages, Message{Role: "user", Text: req.Message})

	return profile, nil
}

func validateCohereResponse(raw []byte) (*ResponseProfile, error) {
	var resp cohereResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, NewValidationError("响应不是合法的 JSON 对象: %v", err)
	}
	if resp.Text == "" && len(resp.ToolCalls) == 0 {
		return nil, NewValidationError("缺少字段 text")
	}

	profile := &ResponseProfile{
		FinishReason: resp.FinishReason,
	}
	if resp.Meta != nil && resp.Meta.BilledUnits != nil {
		profile.HasUsage = true
		profile.InputTokens = resp.Meta.BilledUnits.InputTokens
		profile.OutputTokens = resp.Meta.BilledUnits.OutputTokens
	}
	return profile, nil
}
