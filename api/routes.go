package api

import (
	middlewarepkg "gateway/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, container *AppContainer, handlers *Handlers) {
	scoped := middlewarepkg.CallerScopeMiddleware()

	// 厂商兼容入口，每条路由钉死一个方言
	registerIngressRoutes(router, handlers, scoped, container)

	// 管理 API
	admin := router.Group("/admin/v1")
	admin.Use(scoped)
	registerAdminRoutes(admin, handlers)
}

// registerIngressRoutes 注册厂商兼容的调用入口
func registerIngressRoutes(router *gin.Engine, h *Handlers, scoped gin.HandlerFunc, c *AppContainer) {
	bodyCap := BodySizeLimit(c.Config.Pipeline.MaxBodyBytes)

	// OpenAI 及其兼容厂商
	router.POST("/v1/chat/completions", scoped, bodyCap, h.Ingress.ChatCompletions)
	router.POST("/compat/:vendor/v1/chat/completions", scoped, bodyCap, h.Ingress.CompatChatCompletions)

	// Anthropic
	router.POST("/v1/messages", scoped, bodyCap, h.Ingress.AnthropicMessages)

	// Gemini 与 Bedrock：模型在路径里
	router.POST("/v1beta/models/:model/generateContent", scoped, bodyCap, h.Ingress.GeminiGenerateContent)
	router.POST("/model/:model/converse", scoped, bodyCap, h.Ingress.BedrockConverse)

	// Cohere
	router.POST("/v1/chat", scoped, bodyCap, h.Ingress.CohereChat)
}

// registerAdminRoutes 注册管理路由
func registerAdminRoutes(admin *gin.RouterGroup, h *Handlers) {
	rules := admin.Group("/rules")
	{
		rules.POST("", h.Rules.CreateRule)
		rules.GET("", h.Rules.ListRules)
		rules.PUT("/:id", h.Rules.UpdateRule)
		rules.DELETE("/:id", h.Rules.DeleteRule)
	}

	pricing := admin.Group("/pricing")
	{
		pricing.PUT("", h.Rules.UpsertPricing)
		pricing.GET("", h.Rules.ListPricing)
	}

	creds := admin.Group("/credentials")
	{
		creds.POST("", h.Credentials.CreateCredential)
		creds.GET("", h.Credentials.ListCredentials)
		creds.GET("/:id", h.Credentials.GetCredential)
		creds.DELETE("/:id", h.Credentials.DeleteCredential)
		creds.POST("/:id/resync", h.Credentials.ResyncModels)
		creds.GET("/:id/models", h.Credentials.ListModels)
		creds.GET("/:id/models/marked", h.Credentials.GetMarkedModels)
	}

	interactions := admin.Group("/interactions")
	{
		interactions.GET("", h.Interactions.List)
		interactions.GET("/summary", h.Interactions.Summary)
		interactions.GET("/:id", h.Interactions.Get)
	}
}
