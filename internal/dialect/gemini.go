package dialect

import (
	"encoding/json"
	"strings"
)

// Gemini generateContent 结构
// parts 为带类型的部件列表：text / inlineData / functionCall / functionResponse
// 模型标识在 URL 路径中，请求体内可省略，由 ingress 层补入 model 字段

type geminiRequest struct {
	Model             string          `json:"model"`
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
	Tools             []struct {
		FunctionDeclarations []struct {
			Name string `json:"name"`
		} `json:"functionDeclarations"`
	} `json:"tools"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text         string `json:"text"`
	FunctionCall *struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args"`
	} `json:"functionCall"`
	FunctionResponse *struct {
		Name     string          `json:"name"`
		Response json.RawMessage `json:"response"`
	} `json:"functionResponse"`
}

type geminiResponse struct {
	ModelVersion string `json:"modelVersion"`
	Candidates   []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func validateGeminiRequest(raw []byte) (*RequestProfile, error) {
	var req geminiRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, NewValidationError("载荷不是合法的 JSON 对象: %v", err)
	}
	if req.Model == "" {
		return nil, NewValidationError("缺少字段 model")
	}
	if len(req.Contents) == 0 {
		return nil, NewValidationError("contents 不能为空")
	}

	hasTools := false
	for _, tool := range req.Tools {
		if len(tool.FunctionDeclarations) > 0 {
			hasTools = true
			break
		}
	}

	profile := &RequestProfile{
		Model:    req.Model,
		HasTools: hasTools,
	}

	if req.SystemInstruction != nil {
		text, _ := collectGeminiParts(req.SystemInstruction.Parts)
		if text != "" {
			profile.Messages = append(profile.Messages, Message{Role: "system", Text: text})
		}
	}

	for i, content := range req.Contents {
		if len(content.Parts) == 0 {
			return nil, NewValidationError("contents[%d].parts 不能为空", i)
		}
		role := content.Role
		if role == "" {
			role = "user"
		}
		text, toolText := collectGeminiParts(content.Parts)
		profile.Messages = append(profile.Messages, Message{
			Role:     role,
			Text:     text,
			ToolText: toolText,
		})
	}

	return profile, nil
}

// collectGeminiParts 聚合部件文本
// functionCall 序列化为 name(args-json)，functionResponse 序列化为 name(response-json)
func collectGeminiParts(parts []geminiPart) (string, string) {
	var text, toolText strings.Builder
	for _, part := range parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			toolText.WriteString(part.FunctionCall.Name)
			toolText.WriteString("(")
			toolText.Write(part.FunctionCall.Args)
			toolText.WriteString(")")
		}
		if part.FunctionResponse != nil {
			toolText.WriteString(part.FunctionResponse.Name)
			toolText.WriteString("(")
			toolText.Write(part.FunctionResponse.Response)
			toolText.WriteString(")")
		}
	}
	return text.String(), toolText.String()
}

func validateGeminiResponse(raw []byte) (*ResponseProfile, error) {
	var resp geminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, NewValidationError("响应不是合法的 JSON 对象: %v", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, NewValidationError("candidates 不能为空")
	}

	profile := &ResponseProfile{
		Model:        resp.ModelVersion,
		FinishReason: resp.Candidates[0].FinishReason,
	}
	if resp.UsageMetadata != nil {
		profile.HasUsage = true
		profile.InputTokens = resp.UsageMetadata.PromptTokenCount
		profile.OutputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	return profile, nil
}
