package api

import (
	"time"

	credentialHandlers "gateway/api/handlers/credentials"
	ingressHandlers "gateway/api/handlers/ingress"
	interactionHandlers "gateway/api/handlers/interactions"
	ruleHandlers "gateway/api/handlers/rules"
	"gateway/internal/config"
	"gateway/internal/dialect"
	"gateway/internal/dispatch"
	"gateway/internal/infra"
	"gateway/internal/interaction"
	"gateway/internal/logger"
	"gateway/internal/metrics"
	middlewarepkg "gateway/internal/middleware"
	"gateway/internal/models"
	"gateway/internal/pipeline"
	"gateway/internal/routing"
	"gateway/internal/tokenizer"
	"gateway/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppContainer 服务依赖容器
type AppContainer struct {
	Config      *config.Config
	Registry    *dialect.Registry
	Pipeline    *pipeline.Pipeline
	RuleService *routing.Service
	Credentials *models.CredentialService
	Recorder    *interaction.Recorder
	QueueClient *worker.Client
}

// Handlers 全部 HTTP 处理器
type Handlers struct {
	Ingress      *ingressHandlers.IngressHandler
	Rules        *ruleHandlers.RuleHandler
	Credentials  *credentialHandlers.CredentialHandler
	Interactions *interactionHandlers.InteractionHandler
}

// SetupRouter 设置并返回 Gin 路由和 Worker 服务器
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *worker.Server) {
	router := gin.New()

	redisClient, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis 不可用，规则缓存与后台任务将被停用", zap.Error(err))
		redisClient = nil
	}

	// 方言注册表与 Token 计数适配器
	registry := dialect.NewRegistry()

	tiktokenAdapter, err := tokenizer.NewTiktokenAdapter("")
	if err != nil {
		logger.Fatal("初始化 tiktoken 编码失败", zap.Error(err))
	}
	anthropicAdapter := tokenizer.NewAnthropicAdapter(
		cfg.Vendors.Anthropic.BaseURL,
		cfg.Vendors.Anthropic.APIVersion,
	)
	tokenizers := tokenizer.NewSet(
		tokenizer.NewHeuristicAdapter(),
		tiktokenAdapter,
		anthropicAdapter,
	)

	// 领域服务
	ruleService := routing.NewService(db, registry, redisClient,
		time.Duration(cfg.Pipeline.RuleCacheTTL)*time.Second)
	engine := routing.NewEngine(ruleService)
	credentialService := models.NewCredentialService(db)
	recorder := interaction.NewRecorder(db)
	interactionService := interaction.NewService(recorder)

	dispatchTimeout := time.Duration(cfg.Pipeline.DispatchTimeout) * time.Second
	dispatcher := dispatch.NewDispatcher(&cfg.Vendors, dispatchTimeout)

	p := pipeline.New(registry, tokenizers, engine, credentialService,
		recorder, dispatcher, dispatchTimeout)

	// 后台任务
	var queueClient *worker.Client
	var workerServer *worker.Server
	if cfg.Worker.Enabled && redisClient != nil {
		queueClient = worker.NewClient(cfg.Redis)
		workerServer = worker.NewServer(cfg.Redis, cfg.Worker.Concurrency,
			credentialService, logger.Get())
	}

	container := &AppContainer{
		Config:      cfg,
		Registry:    registry,
		Pipeline:    p,
		RuleService: ruleService,
		Credentials: credentialService,
		Recorder:    recorder,
		QueueClient: queueClient,
	}

	handlers := &Handlers{
		Ingress:      ingressHandlers.NewIngressHandler(registry, p),
		Rules:        ruleHandlers.NewRuleHandler(ruleService),
		Credentials:  credentialHandlers.NewCredentialHandler(credentialService, queueClient),
		Interactions: interactionHandlers.NewInteractionHandler(interactionService),
	}

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	// 公开端点
	router.GET("/health", HealthCheck(db))
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router, container, handlers)

	return router, workerServer
}
