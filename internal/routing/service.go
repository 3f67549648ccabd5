package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gateway/internal/common"
	"gateway/internal/dialect"
	"gateway/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 条件类型
const (
	ConditionContentLength = "content_length"
	ConditionToolPresence  = "tool_presence"
)

// RuleConditionInput 规则条件（API 层表示）
// 存储层把条件摊平成两个可空列，写入前在这里做结构校验
type RuleConditionInput struct {
	Type      string `json:"type" binding:"required"`
	MaxLength *int   `json:"maxLength,omitempty"`
	HasTools  *bool  `json:"hasTools,omitempty"`
}

// CreateRuleRequest 创建规则请求
type CreateRuleRequest struct {
	OrgID       string               `json:"orgId"`
	ScopeType   ScopeType            `json:"scopeType" binding:"required"`
	ScopeID     string               `json:"scopeId" binding:"required"`
	Provider    string               `json:"provider" binding:"required"`
	Conditions  []RuleConditionInput `json:"conditions"`
	TargetModel string               `json:"targetModel" binding:"required"`
	Enabled     *bool                `json:"enabled"`
	Priority    int                  `json:"priority"`
}

// UpdateRuleRequest 更新规则请求
type UpdateRuleRequest struct {
	Conditions  []RuleConditionInput `json:"conditions"`
	TargetModel string               `json:"targetModel"`
	Enabled     *bool                `json:"enabled"`
	Priority    *int                 `json:"priority"`
}

// Service 规则与定价的管理服务
// 规则的结构合法性在这里（写入时）把关，引擎永远读到良构规则；
// Redis 缓存 (provider, org) 维度的已启用规则集，写路径负责失效
type Service struct {
	db       *gorm.DB
	registry *dialect.Registry
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewService 创建管理服务
// rdb 可以为 nil（测试或未部署 Redis 时直接查库）
func NewService(db *gorm.DB, registry *dialect.Registry, rdb *redis.Client, cacheTTL time.Duration) *Service {
	return &Service{
		db:       db,
		registry: registry,
		rdb:      rdb,
		cacheTTL: cacheTTL,
	}
}

// CreateRule 创建规则
// 不合法的配置（条件重复、作用域不匹配、未注册的方言）在这里拒绝，
// 永远不会在路由求值时暴露
func (s *Service) CreateRule(ctx context.Context, req *CreateRuleRequest) (*OptimizationRule, error) {
	if req == nil {
		return nil, fmt.Errorf("请求参数不能为空")
	}
	rule := &OptimizationRule{
		ID:          uuid.New().String(),
		OrgID:       req.OrgID,
		ScopeType:   req.ScopeType,
		ScopeID:     req.ScopeID,
		Provider:    req.Provider,
		TargetModel: req.TargetModel,
		Enabled:     true,
		Priority:    req.Priority,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := s.applyConditions(rule, req.Conditions); err != nil {
		return nil, err
	}
	if err := s.validateRule(rule); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, fmt.Errorf("创建规则失败: %w", err)
	}
	s.invalidateCache(ctx, rule.Provider, rule.OrgID)
	return rule, nil
}

// UpdateRule 更新规则
func (s *Service) UpdateRule(ctx context.Context, orgID, ruleID string, req *UpdateRuleRequest) (*OptimizationRule, error) {
	var rule OptimizationRule
	if err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", ruleID, orgID).
		First(&rule).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.NewBusinessError(common.CodeRuleNotFound, "")
		}
		return nil, fmt.Errorf("查询规则失败: %w", err)
	}

	if req.Conditions != nil {
		rule.MaxLength = nil
		rule.HasTools = nil
		if err := s.applyConditions(&rule, req.Conditions); err != nil {
			return nil, err
		}
	}
	if req.TargetModel != "" {
		rule.TargetModel = req.TargetModel
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if err := s.validateRule(&rule); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(&rule).Error; err != nil {
		return nil, fmt.Errorf("更新规则失败: %w", err)
	}
	s.invalidateCache(ctx, rule.Provider, rule.OrgID)
	return &rule, nil
}

// DeleteRule 删除规则
func (s *Service) DeleteRule(ctx context.Context, orgID, ruleID string) error {
	var rule OptimizationRule
	if err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", ruleID, orgID).
		First(&rule).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return common.NewBusinessError(common.CodeRuleNotFound, "")
		}
		return fmt.Errorf("查询规则失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&rule).Error; err != nil {
		return fmt.Errorf("删除规则失败: %w", err)
	}
	s.invalidateCache(ctx, rule.Provider, rule.OrgID)
	return nil
}

// ListRules 按组织列出规则（优先级升序）
func (s *Service) ListRules(ctx context.Context, orgID string) ([]OptimizationRule, error) {
	var rules []OptimizationRule
	if err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("查询规则失败: %w", err)
	}
	return rules, nil
}

// EnabledRules 返回 (provider, org) 下全部已启用规则（实现 RuleSource）
func (s *Service) EnabledRules(ctx context.Context, provider, orgID string) ([]OptimizationRule, error) {
	cacheKey := ruleCacheKey(provider, orgID)

	if s.rdb != nil && s.cacheTTL > 0 {
		if data, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var rules []OptimizationRule
			if err := json.Unmarshal(data, &rules); err == nil {
				return rules, nil
			}
		}
	}

	var rules []OptimizationRule
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND org_id = ? AND enabled = ?", provider, orgID, true).
		Order("priority ASC, created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("查询规则失败: %w", err)
	}

	if s.rdb != nil && s.cacheTTL > 0 {
		if data, err := json.Marshal(rules); err == nil {
			// 缓存写入失败不影响路由
			if err := s.rdb.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				logger.Warn("规则缓存写入失败", zap.String("key", cacheKey), zap.Error(err))
			}
		}
	}
	return rules, nil
}

// applyConditions 把条件数组摊平到规则列上，重复的条件在此拒绝
func (s *Service) applyConditions(rule *OptimizationRule, conditions []RuleConditionInput) error {
	for _, cond := range conditions {
		switch cond.Type {
		case ConditionContentLength:
			if rule.MaxLength != nil {
				return common.NewBusinessError(common.CodeRuleMisconfigured, "内容长度条件至多一个")
			}
			if cond.MaxLength == nil || *cond.MaxLength < 0 {
				return common.NewBusinessError(common.CodeRuleMisconfigured, "内容长度条件缺少合法的 maxLength")
			}
			rule.MaxLength = cond.MaxLength
		case ConditionToolPresence:
			if rule.HasTools != nil {
				return common.NewBusinessError(common.CodeRuleMisconfigured, "工具条件至多一个")
			}
			if cond.HasTools == nil {
				return common.NewBusinessError(common.CodeRuleMisconfigured, "工具条件缺少 hasTools")
			}
			rule.HasTools = cond.HasTools
		default:
			return common.NewBusinessError(common.CodeRuleMisconfigured, fmt.Sprintf("未知的条件类型: %s", cond.Type))
		}
	}
	return nil
}

// validateRule 写入前的整体校验
func (s *Service) validateRule(rule *OptimizationRule) error {
	if rule.OrgID == "" {
		return common.NewBusinessError(common.CodeRuleMisconfigured, "缺少组织 ID")
	}
	switch rule.ScopeType {
	case ScopeOrganization:
		if rule.ScopeID != rule.OrgID {
			return common.NewBusinessError(common.CodeRuleMisconfigured, "组织级规则的 scopeId 必须等于组织 ID")
		}
	case ScopeTeam:
		if rule.ScopeID == "" {
			return common.NewBusinessError(common.CodeRuleMisconfigured, "团队级规则缺少团队 ID")
		}
	default:
		return common.NewBusinessError(common.CodeRuleMisconfigured, fmt.Sprintf("未知的作用域类型: %s", rule.ScopeType))
	}
	if _, err := s.registry.Resolve(dialect.Tag(rule.Provider)); err != nil {
		return common.NewBusinessError(common.CodeRuleMisconfigured, fmt.Sprintf("未注册的方言: %s", rule.Provider))
	}
	if rule.TargetModel == "" {
		return common.NewBusinessError(common.CodeRuleMisconfigured, "缺少目标模型")
	}
	return nil
}

func ruleCacheKey(provider, orgID string) string {
	return fmt.Sprintf("route:rules:%s:%s", provider, orgID)
}

func (s *Service) invalidateCache(ctx context.Context, provider, orgID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, ruleCacheKey(provider, orgID)).Err(); err != nil {
		logger.Warn("规则缓存失效失败",
			zap.String("provider", provider),
			zap.String("org_id", orgID),
			zap.Error(err),
		)
	}
}

// UpsertPricing 写入或更新模型定价
func (s *Service) UpsertPricing(ctx context.Context, pricing *ModelPricing) error {
	if pricing.Provider == "" || pricing.ModelID == "" {
		return fmt.Errorf("provider 与 modelId 必填")
	}
	if pricing.ID == "" {
		pricing.ID = uuid.New().String()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"input_per_million", "output_per_million", "updated_at"}),
		}).
		Create(pricing).Error
	if err != nil {
		return fmt.Errorf("写入定价失败: %w", err)
	}
	return nil
}

// ListPricingByCost 按输入单价升序返回某方言的全部定价
// 给规则编辑界面排序候选目标模型用，不参与路由判定
func (s *Service) ListPricingByCost(ctx context.Context, provider string) ([]ModelPricing, error) {
	var rows []ModelPricing
	if err := s.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("input_per_million ASC, model_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询定价失败: %w", err)
	}
	return rows, nil
}
