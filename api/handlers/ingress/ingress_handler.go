package ingress

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gateway/internal/common"
	"gateway/internal/dialect"
	"gateway/internal/middleware"
	"gateway/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// 兼容路由允许挂载的厂商
var compatVendors = map[string]struct{}{
	"cerebras": {},
	"mistral":  {},
	"vllm":     {},
	"ollama":   {},
	"zhipuai":  {},
}

// IngressHandler 厂商兼容入口
// 每条路由钉死一个方言标签，载荷内容不参与方言判定
type IngressHandler struct {
	registry *dialect.Registry
	pipeline *pipeline.Pipeline
}

// NewIngressHandler 创建入口处理器
func NewIngressHandler(registry *dialect.Registry, p *pipeline.Pipeline) *IngressHandler {
	return &IngressHandler{
		registry: registry,
		pipeline: p,
	}
}

// ChatCompletions OpenAI 兼容入口 POST /v1/chat/completions
func (h *IngressHandler) ChatCompletions(c *gin.Context) {
	h.handle(c, "openai", nil)
}

// CompatChatCompletions 其余 OpenAI 兼容厂商入口
// POST /compat/:vendor/v1/chat/completions
func (h *IngressHandler) CompatChatCompletions(c *gin.Context) {
	vendor := c.Param("vendor")
	if _, ok := compatVendors[vendor]; !ok {
		common.ResponseError(c, common.CodeUnsupportedDialect, "")
		return
	}
	h.handle(c, vendor, nil)
}

// AnthropicMessages Anthropic 入口 POST /v1/messages
func (h *IngressHandler) AnthropicMessages(c *gin.Context) {
	h.handle(c, "anthropic", nil)
}

// GeminiGenerateContent Gemini 入口
// POST /v1beta/models/:model/generateContent，模型来自路径
func (h *IngressHandler) GeminiGenerateContent(c *gin.Context) {
	model := c.Param("model")
	h.handle(c, "gemini", func(payload []byte) ([]byte, error) {
		return injectField(payload, "model", model)
	})
}

// BedrockConverse Bedrock 入口 POST /model/:model/converse，模型来自路径
func (h *IngressHandler) BedrockConverse(c *gin.Context) {
	model := c.Param("model")
	h.handle(c, "bedrock", func(payload []byte) ([]byte, error) {
		return injectField(payload, "modelId", model)
	})
}

// CohereChat Cohere 入口 POST /v1/chat
func (h *IngressHandler) CohereChat(c *gin.Context) {
	h.handle(c, "cohere", nil)
}

func (h *IngressHandler) handle(c *gin.Context, routeHint string, inject func([]byte) ([]byte, error)) {
	tag, err := h.registry.Classify(routeHint)
	if err != nil {
		common.ResponseError(c, common.CodeUnsupportedDialect, "")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.ResponseError(c, common.CodeRequestValidationFailed, "请求体超出大小上限")
			return
		}
		common.ResponseBadRequest(c, "读取请求体失败")
		return
	}
	if inject != nil {
		payload, err = inject(payload)
		if err != nil {
			common.ResponseError(c, common.CodeRequestValidationFailed, "请求体不是合法的 JSON 对象")
			return
		}
	}

	scope := middleware.GetCallerScope(c)
	if scope == nil {
		common.ResponseError(c, common.CodeUnauthorized, "")
		return
	}

	outcome, err := h.pipeline.Handle(c.Request.Context(), &pipeline.Call{
		Tag:     tag,
		Payload: payload,
		OrgID:   scope.OrgID,
		TeamIDs: scope.TeamIDs,
		UserID:  scope.UserID,
		AgentID: scope.AgentID,
		TraceID: middleware.GetTraceID(c.Request.Context()),
	})
	if err != nil {
		var bizErr *common.BusinessError
		if errors.As(err, &bizErr) {
			common.ResponseBusinessError(c, bizErr)
			return
		}
		common.ResponseServerError(c, err.Error())
		return
	}

	if outcome.InteractionID != "" {
		c.Header("X-Interaction-ID", outcome.InteractionID)
	}
	c.Data(outcome.StatusCode, "application/json", outcome.Body)
}

// injectField 把路径里的模型写入载荷，其余字段原文保留
func injectField(payload []byte, field, value string) ([]byte, error) {
	doc := make(map[string]json.RawMessage)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, err
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	doc[field] = encoded
	return json.Marshal(doc)
}
