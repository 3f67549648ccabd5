package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 流水线指标
var (
	// PipelineCallsTotal LLM 调用总数（按方言与最终状态）
	PipelineCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_pipeline_calls_total",
			Help: "LLM 调用总数",
		},
		[]string{"dialect", "status"},
	)

	// PipelineDispatchDuration 上游调用耗时（秒）
	PipelineDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_pipeline_dispatch_duration_seconds",
			Help:    "上游模型调用耗时分布",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"dialect"},
	)

	// RuleRewritesTotal 优化规则命中（发生模型改写）的次数
	RuleRewritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rule_rewrites_total",
			Help: "优化规则命中并改写模型的次数",
		},
		[]string{"dialect", "org_id"},
	)

	// EstimatedTokensTotal 预估输入 Token 总数
	EstimatedTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_estimated_input_tokens_total",
			Help: "调用前预估的输入 Token 累计值",
		},
		[]string{"dialect"},
	)

	// DegradedEstimatesTotal 使用启发式兜底计数器的次数
	DegradedEstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_degraded_estimates_total",
			Help: "Token 估算降级为启发式算法的次数",
		},
		[]string{"dialect"},
	)
)
