package routing

import (
	"context"
	"fmt"
	"sort"
)

// RuleSource 已启用规则的来源
// 实现方返回 (provider, orgID) 下全部已启用规则，不做作用域过滤
type RuleSource interface {
	EnabledRules(ctx context.Context, provider, orgID string) ([]OptimizationRule, error)
}

// RouteInput 一次路由判定的输入
// ContentLength 是所有消息纯文本内容的总长（系统提示词计入，
// 工具调用的结构化载荷不计入）
type RouteInput struct {
	Provider       string
	OrgID          string
	TeamIDs        []string
	RequestedModel string
	ContentLength  int
	HasTools       bool
}

// Decision 路由判定结果
// 未命中任何规则时 DispatchedModel == RequestedModel 且 FiredRuleID 为空
type Decision struct {
	DispatchedModel string `json:"dispatched_model"`
	FiredRuleID     string `json:"fired_rule_id,omitempty"`
	Rewritten       bool   `json:"rewritten"`
}

// Engine 优化规则引擎
// 对规则只读，按优先级顺序求值，第一条全部条件为真的规则胜出
type Engine struct {
	source RuleSource
}

// NewEngine 创建规则引擎
func NewEngine(source RuleSource) *Engine {
	return &Engine{source: source}
}

// Route 判定本次调用应分发到哪个模型
func (e *Engine) Route(ctx context.Context, input RouteInput) (Decision, error) {
	decision := Decision{DispatchedModel: input.RequestedModel}

	rules, err := e.source.EnabledRules(ctx, input.Provider, input.OrgID)
	if err != nil {
		return decision, fmt.Errorf("加载规则失败: %w", err)
	}

	// 按调用方维护的顺序求值（越小优先级越高）
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	teamSet := make(map[string]struct{}, len(input.TeamIDs))
	for _, id := range input.TeamIDs {
		teamSet[id] = struct{}{}
	}

	for _, rule := range rules {
		if !ruleInScope(&rule, input.OrgID, teamSet) {
			continue
		}
		if !evaluate(&rule, input) {
			continue
		}
		// 首条命中即停，不再求值后续规则
		decision.DispatchedModel = rule.TargetModel
		decision.FiredRuleID = rule.ID
		decision.Rewritten = rule.TargetModel != input.RequestedModel
		return decision, nil
	}

	return decision, nil
}

// ruleInScope 作用域判定
// 团队规则只对该团队成员生效；引用已删除团队的规则自然永不命中，不报错
func ruleInScope(rule *OptimizationRule, orgID string, teamSet map[string]struct{}) bool {
	switch rule.ScopeType {
	case ScopeOrganization:
		return rule.ScopeID == orgID
	case ScopeTeam:
		_, ok := teamSet[rule.ScopeID]
		return ok
	default:
		return false
	}
}

// evaluate 条件求值，全部条件为真才算命中
func evaluate(rule *OptimizationRule, input RouteInput) bool {
	if rule.MaxLength != nil && input.ContentLength > *rule.MaxLength {
		return false
	}
	if rule.HasTools != nil && input.HasTools != *rule.HasTools {
		return false
	}
	return true
}
