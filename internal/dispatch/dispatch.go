package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gateway/internal/config"
	"gateway/internal/dialect"
	"gateway/internal/logger"
	"gateway/pkg/httputil"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Request 一次出站转发
// Payload 是路由改写后的生效载荷；Model 用于模型在 URL
// 路径中的方言（gemini、bedrock）拼接端点
type Request struct {
	Tag          dialect.Tag
	Model        string
	Payload      []byte
	APIKey       string
	BaseURL      string
	ExtraHeaders map[string]string
}

// Result 上游的原样响应
// 非 2xx 的上游响应不在这里判错，状态码与响应体一并带回，
// 由流水线决定如何收尾与回传
type Result struct {
	StatusCode int
	Body       []byte
}

// Dispatcher 按方言把生效请求转发到上游
type Dispatcher struct {
	http             *httputil.Client
	baseURLs         map[string]string
	anthropicVersion string
}

// NewDispatcher 创建转发器
func NewDispatcher(vendors *config.VendorsConfig, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		http:             httputil.NewClient(httputil.WithTimeout(timeout)),
		baseURLs:         vendors.BaseURLs,
		anthropicVersion: vendors.Anthropic.APIVersion,
	}
}

// Dispatch 转发请求并返回上游原样响应
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("请求参数不能为空")
	}
	base := req.BaseURL
	if base == "" {
		base = d.baseURLs[string(req.Tag)]
	}
	if base == "" {
		return nil, fmt.Errorf("方言 %s 缺少出站基址", req.Tag)
	}
	base = strings.TrimRight(base, "/")

	switch req.Tag {
	case dialect.TagOpenAIChat, dialect.TagCerebrasChat, dialect.TagMistralChat,
		dialect.TagVLLMChat, dialect.TagOllamaChat, dialect.TagZhipuaiChat:
		return d.dispatchOpenAI(ctx, req, base)
	case dialect.TagAnthropicMessages:
		return d.post(ctx, base+"/v1/messages", req.Payload, map[string]string{
			"x-api-key":         req.APIKey,
			"anthropic-version": d.anthropicVersion,
		}, req.ExtraHeaders)
	case dialect.TagGeminiGenerateContent:
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(req.Model))
		return d.post(ctx, endpoint, req.Payload, map[string]string{
			"x-goog-api-key": req.APIKey,
		}, req.ExtraHeaders)
	case dialect.TagBedrockConverse:
		endpoint := fmt.Sprintf("%s/model/%s/converse", base, url.PathEscape(req.Model))
		return d.post(ctx, endpoint, req.Payload, map[string]string{
			"Authorization": "Bearer " + req.APIKey,
		}, req.ExtraHeaders)
	case dialect.TagCohereChat:
		return d.post(ctx, base+"/v1/chat", req.Payload, map[string]string{
			"Authorization": "Bearer " + req.APIKey,
		}, req.ExtraHeaders)
	default:
		return nil, dialect.ErrUnsupportedDialect
	}
}

// dispatchOpenAI 走 OpenAI 兼容方言的类型化客户端
// 所有 OpenAI 兼容厂商共用同一条路径，只是基址与密钥不同
func (d *Dispatcher) dispatchOpenAI(ctx context.Context, req *Request, base string) (*Result, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if strings.HasSuffix(base, "/v1") {
		cfg.BaseURL = base
	} else {
		cfg.BaseURL = base + "/v1"
	}
	if len(req.ExtraHeaders) > 0 {
		cfg.HTTPClient = &http.Client{
			Transport: &headerTransport{base: http.DefaultTransport, headers: req.ExtraHeaders},
		}
	}
	client := openai.NewClientWithConfig(cfg)

	var chatReq openai.ChatCompletionRequest
	if err := json.Unmarshal(req.Payload, &chatReq); err != nil {
		return nil, fmt.Errorf("解析生效载荷失败: %w", err)
	}
	if req.Model != "" {
		chatReq.Model = req.Model
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			body, mErr := json.Marshal(map[string]any{"error": apiErr})
			if mErr != nil {
				body = []byte(fmt.Sprintf(`{"error":{"message":%q}}`, apiErr.Message))
			}
			logger.Warn("上游返回错误",
				zap.String("dialect", string(req.Tag)),
				zap.Int("status", apiErr.HTTPStatusCode),
			)
			return &Result{StatusCode: apiErr.HTTPStatusCode, Body: body}, nil
		}
		return nil, err
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("序列化上游响应失败: %w", err)
	}
	return &Result{StatusCode: 200, Body: body}, nil
}

// headerTransport 为类型化客户端的每个请求附加凭证配置的请求头
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

func (d *Dispatcher) post(ctx context.Context, endpoint string, payload []byte, headers, extra map[string]string) (*Result, error) {
	for k, v := range extra {
		headers[k] = v
	}
	status, body, err := d.http.PostRaw(ctx, endpoint, payload, headers)
	if err != nil {
		return nil, err
	}
	return &Result{StatusCode: status, Body: body}, nil
}
