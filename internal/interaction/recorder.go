package interaction

import (
	"context"
	"fmt"
	"time"

	"gateway/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder 交互记录的生命周期写入
// Begin 在转发前落 pending 行，之后的补写以记录 ID 为句柄；
// 收尾写入失败只记日志，不影响已拿到的上游响应
type Recorder struct {
	db *gorm.DB
}

// NewRecorder 创建记录器
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// BeginInput 开始记录所需的上下文
type BeginInput struct {
	OrgID                string
	TeamID               string
	UserID               string
	AgentID              string
	TraceID              string
	Provider             string
	RequestedModel       string
	EstimatedInputTokens int
	EstimateDegraded     bool
	OriginalPayload      []byte
}

// Begin 落一条 pending 记录，返回后续补写用的记录 ID
func (r *Recorder) Begin(ctx context.Context, in *BeginInput) (string, error) {
	if in == nil {
		return "", fmt.Errorf("请求参数不能为空")
	}
	now := time.Now().UTC()
	rec := &Interaction{
		ID:                   uuid.New().String(),
		OrgID:                in.OrgID,
		TeamID:               in.TeamID,
		UserID:               in.UserID,
		AgentID:              in.AgentID,
		TraceID:              in.TraceID,
		Provider:             in.Provider,
		RequestedModel:       in.RequestedModel,
		DispatchedModel:      in.RequestedModel,
		EstimatedInputTokens: in.EstimatedInputTokens,
		EstimateDegraded:     in.EstimateDegraded,
		Status:               StatusPending,
		OriginalPayload:      datatypes.JSON(in.OriginalPayload),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", fmt.Errorf("创建交互记录失败: %w", err)
	}
	return rec.ID, nil
}

// SetEffective 路由判定后补写生效模型与生效载荷
// 未命中规则时 effectivePayload 传原始载荷即可
func (r *Recorder) SetEffective(ctx context.Context, id, dispatchedModel string, firedRuleID *string, effectivePayload []byte) error {
	updates := map[string]any{
		"dispatched_model":  dispatchedModel,
		"fired_rule_id":     firedRuleID,
		"effective_payload": datatypes.JSON(effectivePayload),
		"updated_at":        time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Model(&Interaction{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("更新交互记录失败: %w", err)
	}
	return nil
}

// CompleteInput 成功收尾所需的响应侧信息
type CompleteInput struct {
	InputTokens  int
	OutputTokens int
	HasUsage     bool
	FinishReason string
	LatencyMs    int64
	ResponseBody []byte
}

// Complete 成功收尾
func (r *Recorder) Complete(ctx context.Context, id string, in *CompleteInput) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":           StatusCompleted,
		"input_tokens":     in.InputTokens,
		"output_tokens":    in.OutputTokens,
		"has_usage":        in.HasUsage,
		"finish_reason":    in.FinishReason,
		"latency_ms":       in.LatencyMs,
		"response_payload": datatypes.JSON(in.ResponseBody),
		"completed_at":     now,
		"updated_at":       now,
	}
	if err := r.db.WithContext(ctx).
		Model(&Interaction{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		logger.Error("交互记录收尾失败", zap.String("interaction_id", id), zap.Error(err))
	}
}

// Fail 失败收尾，errorKind 取本包定义的分类常量
func (r *Recorder) Fail(ctx context.Context, id, errorKind string, latencyMs int64) {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":       StatusFailed,
		"error_kind":   errorKind,
		"latency_ms":   latencyMs,
		"completed_at": now,
		"updated_at":   now,
	}
	if err := r.db.WithContext(ctx).
		Model(&Interaction{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		logger.Error("交互记录收尾失败", zap.String("interaction_id", id), zap.Error(err))
	}
}
