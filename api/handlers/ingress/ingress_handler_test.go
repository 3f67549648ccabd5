package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gateway/internal/common"
	"gateway/internal/dialect"
	"gateway/internal/dispatch"
	"gateway/internal/interaction"
	"gateway/internal/logger"
	"gateway/internal/middleware"
	"gateway/internal/models"
	"gateway/internal/pipeline"
	"gateway/internal/routing"
	"gateway/internal/tokenizer"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("debug", "console", "stdout")
}

type stubDispatcher struct {
	lastReq *dispatch.Request
	result  *dispatch.Result
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	s.lastReq = req
	return s.result, nil
}

type ingressFixture struct {
	router     *gin.Engine
	creds      *models.CredentialService
	dispatcher *stubDispatcher
}

func setupIngressRouter(t *testing.T, dispatcher *stubDispatcher) *ingressFixture {
	dsn := fmt.Sprintf("file:ingress_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "打开测试数据库失败")
	err = db.AutoMigrate(
		&routing.OptimizationRule{},
		&models.Credential{},
		&models.CredentialModelLink{},
		&interaction.Interaction{},
	)
	require.NoError(t, err, "迁移测试表失败")

	registry := dialect.NewRegistry()
	rules := routing.NewService(db, registry, nil, 0)
	creds := models.NewCredentialService(db)
	p := pipeline.New(
		registry,
		tokenizer.NewSet(tokenizer.NewHeuristicAdapter()),
		routing.NewEngine(rules),
		creds,
		interaction.NewRecorder(db),
		dispatcher,
		time.Second,
	)
	handler := NewIngressHandler(registry, p)

	router := gin.New()
	scoped := router.Group("", middleware.CallerScopeMiddleware())
	scoped.POST("/v1/chat/completions", handler.ChatCompletions)
	scoped.POST("/compat/:vendor/v1/chat/completions", handler.CompatChatCompletions)
	scoped.POST("/v1beta/models/:model/generateContent", handler.GeminiGenerateContent)

	return &ingressFixture{router: router, creds: creds, dispatcher: dispatcher}
}

func (f *ingressFixture) seedCredential(t *testing.T, provider string) {
	t.Helper()
	_, err := f.creds.CreateCredential(context.Background(), &models.CreateCredentialRequest{
		OrgID:    "org-1",
		Provider: provider,
		Name:     "测试凭证",
		APIKey:   "sk-test-key",
	})
	require.NoError(t, err)
}

func postJSON(router *gin.Engine, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) common.APIResponse {
	t.Helper()
	var resp common.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIngressRequiresOrgHeader(t *testing.T) {
	fx := setupIngressRouter(t, &stubDispatcher{})

	w := postJSON(fx.router, "/v1/chat/completions", []byte(`{}`), nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	resp := decodeEnvelope(t, w)
	require.Equal(t, common.CodeUnauthorized, resp.Code)
}

func TestIngressRejectsUnknownCompatVendor(t *testing.T) {
	fx := setupIngressRouter(t, &stubDispatcher{})

	w := postJSON(fx.router, "/compat/acme/v1/chat/completions", []byte(`{}`), map[string]string{
		middleware.HeaderOrgID: "org-1",
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeEnvelope(t, w)
	require.Equal(t, common.CodeUnsupportedDialect, resp.Code)
}

func TestIngressRelaysUpstreamResponse(t *testing.T) {
	upstream := `{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"好"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`
	dispatcher := &stubDispatcher{result: &dispatch.Result{StatusCode: 200, Body: []byte(upstream)}}
	fx := setupIngressRouter(t, dispatcher)
	fx.seedCredential(t, "openai-chat")

	payload := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"你好"}]}`)
	w := postJSON(fx.router, "/v1/chat/completions", payload, map[string]string{
		middleware.HeaderOrgID:   "org-1",
		middleware.HeaderTeamIDs: "team-a,team-b",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, upstream, w.Body.String(), "上游响应应原样回传，不套业务信封")
	require.NotEmpty(t, w.Header().Get("X-Interaction-ID"))
}

func TestIngressCompatVendorKeepsOwnTag(t *testing.T) {
	upstream := `{"id":"c1","choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`
	dispatcher := &stubDispatcher{result: &dispatch.Result{StatusCode: 200, Body: []byte(upstream)}}
	fx := setupIngressRouter(t, dispatcher)
	fx.seedCredential(t, "mistral-chat")

	payload := []byte(`{"model":"mistral-small","messages":[{"role":"user","content":"hi"}]}`)
	w := postJSON(fx.router, "/compat/mistral/v1/chat/completions", payload, map[string]string{
		middleware.HeaderOrgID: "org-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, dialect.TagMistralChat, dispatcher.lastReq.Tag, "兼容厂商保留自己的方言标签")
}

func TestIngressGeminiModelFromPath(t *testing.T) {
	upstream := `{"modelVersion":"gemini-2.0-flash","candidates":[{"content":{"role":"model","parts":[{"text":"好"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}`
	dispatcher := &stubDispatcher{result: &dispatch.Result{StatusCode: 200, Body: []byte(upstream)}}
	fx := setupIngressRouter(t, dispatcher)
	fx.seedCredential(t, "gemini-generateContent")

	// 请求体不带 model，模型标识来自路径
	payload := []byte(`{"contents":[{"role":"user","parts":[{"text":"你好"}]}]}`)
	w := postJSON(fx.router, "/v1beta/models/gemini-2.0-flash/generateContent", payload, map[string]string{
		middleware.HeaderOrgID: "org-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gemini-2.0-flash", dispatcher.lastReq.Model)
}

func TestIngressValidationFailureUsesEnvelope(t *testing.T) {
	fx := setupIngressRouter(t, &stubDispatcher{})

	w := postJSON(fx.router, "/v1/chat/completions", []byte(`{"messages":[]}`), map[string]string{
		middleware.HeaderOrgID: "org-1",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeEnvelope(t, w)
	require.Equal(t, common.CodeRequestValidationFailed, resp.Code)
}
