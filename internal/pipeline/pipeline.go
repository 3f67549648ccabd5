package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gateway/internal/common"
	"gateway/internal/dialect"
	"gateway/internal/dispatch"
	"gateway/internal/interaction"
	"gateway/internal/logger"
	"gateway/internal/metrics"
	"gateway/internal/models"
	"gateway/internal/routing"
	"gateway/internal/tokenizer"

	"go.uber.org/zap"
)

// Dispatcher 出站转发的抽象，测试里注入假实现
type Dispatcher interface {
	Dispatch(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error)
}

// Call 一次入站调用
// Payload 是方言原始载荷；模型在 URL 路径里的方言（gemini、bedrock）
// 由入口处理器先把模型併入载荷再进流水线
type Call struct {
	Tag     dialect.Tag
	Payload []byte
	OrgID   string
	TeamIDs []string
	UserID  string
	AgentID string
	TraceID string
}

// Outcome 流水线的处理结果
// 上游响应（包括上游的错误响应）原样回传，网关不改写响应体
type Outcome struct {
	StatusCode    int
	Body          []byte
	InteractionID string
}

// Pipeline 调用流水线：校验 → 估算 → 路由 → 记录 → 转发 → 收尾
// 各阶段之间只传不可变的归一化结构，调用之间互不共享状态
type Pipeline struct {
	registry    *dialect.Registry
	tokenizers  *tokenizer.Set
	engine      *routing.Engine
	credentials *models.CredentialService
	recorder    *interaction.Recorder
	dispatcher  Dispatcher
	timeout     time.Duration
}

// New 创建流水线
func New(
	registry *dialect.Registry,
	tokenizers *tokenizer.Set,
	engine *routing.Engine,
	credentials *models.CredentialService,
	recorder *interaction.Recorder,
	dispatcher Dispatcher,
	timeout time.Duration,
) *Pipeline {
	return &Pipeline{
		registry:    registry,
		tokenizers:  tokenizers,
		engine:      engine,
		credentials: credentials,
		recorder:    recorder,
		dispatcher:  dispatcher,
		timeout:     timeout,
	}
}

// Handle 处理一次调用
// 结构校验失败不落交互记录；凭证缺失同理（尚未到转发阶段）；
// 转发失败与超时都已有 pending 行，以 Fail 收尾后原样返回错误
func (p *Pipeline) Handle(ctx context.Context, call *Call) (*Outcome, error) {
	d, err := p.registry.Resolve(call.Tag)
	if err != nil {
		return nil, common.NewBusinessError(common.CodeUnsupportedDialect, "")
	}

	profile, err := d.ValidateRequest(call.Payload)
	if err != nil {
		metrics.PipelineCallsTotal.WithLabelValues(string(call.Tag), "validation_failed").Inc()
		var vErr *dialect.ValidationError
		if errors.As(err, &vErr) {
			return nil, common.NewBusinessError(common.CodeRequestValidationFailed, vErr.Reason)
		}
		return nil, common.NewBusinessError(common.CodeRequestValidationFailed, "")
	}

	estimate := p.tokenizers.Estimate(ctx, d.Tokenizer, profile.Messages)
	metrics.EstimatedTokensTotal.WithLabelValues(string(call.Tag)).Add(float64(estimate.InputTokens))
	if estimate.Degraded {
		metrics.DegradedEstimatesTotal.WithLabelValues(string(call.Tag)).Inc()
	}

	decision, err := p.engine.Route(ctx, routing.RouteInput{
		Provider:       string(call.Tag),
		OrgID:          call.OrgID,
		TeamIDs:        call.TeamIDs,
		RequestedModel: profile.Model,
		ContentLength:  profile.ContentLength(),
		HasTools:       profile.HasTools,
	})
	if err != nil {
		// 规则加载失败不阻断调用，按请求的模型原样转发
		logger.Warn("路由判定失败，按原模型转发",
			zap.String("dialect", string(call.Tag)),
			zap.String("org_id", call.OrgID),
			zap.Error(err),
		)
		decision = routing.Decision{DispatchedModel: profile.Model}
	}
	if decision.Rewritten {
		metrics.RuleRewritesTotal.WithLabelValues(string(call.Tag), call.OrgID).Inc()
	}

	cred, apiKey, err := p.credentials.ResolveCredential(ctx, call.OrgID, string(call.Tag))
	if err != nil {
		return nil, err
	}
	extraHeaders, err := cred.DecodeExtraHeaders()
	if err != nil {
		// 附加头在创建时已校验，解析失败只降级为不附加
		logger.Warn("凭证附加请求头不可用",
			zap.String("credential_id", cred.ID),
			zap.Error(err),
		)
	}

	effective := call.Payload
	if decision.Rewritten {
		effective, err = rewriteModel(call.Payload, modelField(call.Tag), decision.DispatchedModel)
		if err != nil {
			return nil, fmt.Errorf("改写生效载荷失败: %w", err)
		}
	}

	id, err := p.recorder.Begin(ctx, &interaction.BeginInput{
		OrgID:                call.OrgID,
		TeamID:               firstTeam(call.TeamIDs),
		UserID:               call.UserID,
		AgentID:              call.AgentID,
		TraceID:              call.TraceID,
		Provider:             string(call.Tag),
		RequestedModel:       profile.Model,
		EstimatedInputTokens: estimate.InputTokens,
		EstimateDegraded:     estimate.Degraded,
		OriginalPayload:      call.Payload,
	})
	if err != nil {
		return nil, err
	}

	var firedRuleID *string
	if decision.FiredRuleID != "" {
		firedRuleID = &decision.FiredRuleID
	}
	if err := p.recorder.SetEffective(ctx, id, decision.DispatchedModel, firedRuleID, effective); err != nil {
		logger.Error("写入生效载荷失败", zap.String("interaction_id", id), zap.Error(err))
	}

	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.dispatcher.Dispatch(dctx, &dispatch.Request{
		Tag:          call.Tag,
		Model:        decision.DispatchedModel,
		Payload:      effective,
		APIKey:       apiKey,
		BaseURL:      cred.BaseURL,
		ExtraHeaders: extraHeaders,
	})
	elapsed := time.Since(start)
	metrics.PipelineDispatchDuration.WithLabelValues(string(call.Tag)).Observe(elapsed.Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || dctx.Err() == context.DeadlineExceeded {
			p.recorder.Fail(ctx, id, interaction.ErrUpstreamTimeout, elapsed.Milliseconds())
			metrics.PipelineCallsTotal.WithLabelValues(string(call.Tag), "timeout").Inc()
			return nil, common.NewBusinessError(common.CodeUpstreamTimeout, "")
		}
		p.recorder.Fail(ctx, id, interaction.ErrUpstreamDispatch, elapsed.Milliseconds())
		metrics.PipelineCallsTotal.WithLabelValues(string(call.Tag), "dispatch_failed").Inc()
		logger.Error("上游调用失败",
			zap.String("dialect", string(call.Tag)),
			zap.String("interaction_id", id),
			zap.Error(err),
		)
		return nil, common.NewBusinessError(common.CodeUpstreamDispatchFailed, "")
	}

	if result.StatusCode >= 400 {
		// 上游的错误响应原样回传给调用方
		p.recorder.Fail(ctx, id, interaction.ErrUpstreamDispatch, elapsed.Milliseconds())
		metrics.PipelineCallsTotal.WithLabelValues(string(call.Tag), "upstream_error").Inc()
		return &Outcome{StatusCode: result.StatusCode, Body: result.Body, InteractionID: id}, nil
	}

	complete := &interaction.CompleteInput{
		InputTokens:  estimate.InputTokens,
		LatencyMs:    elapsed.Milliseconds(),
		ResponseBody: result.Body,
	}
	if respProfile, vErr := d.ValidateResponse(result.Body); vErr == nil {
		complete.FinishReason = respProfile.FinishReason
		if respProfile.HasUsage {
			// 计费以厂商返回的实际用量为准，估算值只留作对照
			complete.InputTokens = respProfile.InputTokens
			complete.OutputTokens = respProfile.OutputTokens
			complete.HasUsage = true
		}
	} else {
		logger.Warn("上游响应结构异常，按无用量收尾",
			zap.String("dialect", string(call.Tag)),
			zap.String("interaction_id", id),
			zap.Error(vErr),
		)
	}
	p.recorder.Complete(ctx, id, complete)
	metrics.PipelineCallsTotal.WithLabelValues(string(call.Tag), "completed").Inc()

	return &Outcome{StatusCode: result.StatusCode, Body: result.Body, InteractionID: id}, nil
}

// modelField 模型字段在载荷里的键名
func modelField(tag dialect.Tag) string {
	if tag == dialect.TagBedrockConverse {
		return "modelId"
	}
	return "model"
}

// rewriteModel 只替换载荷里的模型字段，其余字段原文保留
func rewriteModel(payload []byte, field, model string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}
	doc[field] = encoded
	return json.Marshal(doc)
}

func firstTeam(teamIDs []string) string {
	if len(teamIDs) == 0 {
		return ""
	}
	return teamIDs[0]
}
