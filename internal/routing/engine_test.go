package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticSource struct {
	rules []OptimizationRule
	err   error
}

func (s *staticSource) EnabledRules(ctx context.Context, provider, orgID string) ([]OptimizationRule, error) {
	return s.rules, s.err
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func orgRule(id, org, target string, priority int) OptimizationRule {
	return OptimizationRule{
		ID:          id,
		OrgID:       org,
		ScopeType:   ScopeOrganization,
		ScopeID:     org,
		Provider:    "openai-chat",
		TargetModel: target,
		Enabled:     true,
		Priority:    priority,
	}
}

func TestRouteNoRulesKeepsRequestedModel(t *testing.T) {
	engine := NewEngine(&staticSource{})

	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
		ContentLength:  1000,
	})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", decision.DispatchedModel)
	require.Empty(t, decision.FiredRuleID)
	require.False(t, decision.Rewritten)
}

func TestRouteShortRequestRewrittenLongKept(t *testing.T) {
	rule := orgRule("r1", "org-1", "gpt-4o-mini", 0)
	rule.MaxLength = intPtr(500)
	engine := NewEngine(&staticSource{rules: []OptimizationRule{rule}})

	// 1500 字符超过上限，规则不命中
	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
		ContentLength:  1500,
	})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", decision.DispatchedModel)
	require.False(t, decision.Rewritten)

	// 300 字符在上限内，改写为目标模型
	decision, err = engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
		ContentLength:  300,
	})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", decision.DispatchedModel)
	require.Equal(t, "r1", decision.FiredRuleID)
	require.True(t, decision.Rewritten)
}

func TestRouteFirstMatchWins(t *testing.T) {
	first := orgRule("r1", "org-1", "model-a", 1)
	second := orgRule("r2", "org-1", "model-b", 2)
	// 故意乱序传入，引擎应按优先级重排
	engine := NewEngine(&staticSource{rules: []OptimizationRule{second, first}})

	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
	})
	require.NoError(t, err)
	require.Equal(t, "model-a", decision.DispatchedModel)
	require.Equal(t, "r1", decision.FiredRuleID, "首条命中即停，后续规则不参与")
}

func TestRouteToolConditionMustMatch(t *testing.T) {
	rule := orgRule("r1", "org-1", "tool-model", 0)
	rule.HasTools = boolPtr(true)
	engine := NewEngine(&staticSource{rules: []OptimizationRule{rule}})

	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
		HasTools:       false,
	})
	require.NoError(t, err)
	require.False(t, decision.Rewritten, "无工具请求不应命中工具规则")

	decision, err = engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
		HasTools:       true,
	})
	require.NoError(t, err)
	require.Equal(t, "tool-model", decision.DispatchedModel)
}

func TestRouteTeamScopeDoesNotLeak(t *testing.T) {
	teamRule := OptimizationRule{
		ID:          "r-team",
		OrgID:       "org-1",
		ScopeType:   ScopeTeam,
		ScopeID:     "team-a",
		Provider:    "openai-chat",
		TargetModel: "team-model",
		Enabled:     true,
	}
	engine := NewEngine(&staticSource{rules: []OptimizationRule{teamRule}})

	// 同组织其他团队的成员不受影响
	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		TeamIDs:        []string{"team-b"},
		RequestedModel: "gpt-4o",
	})
	require.NoError(t, err)
	require.False(t, decision.Rewritten)

	// 团队成员命中
	decision, err = engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		TeamIDs:        []string{"team-a", "team-b"},
		RequestedModel: "gpt-4o",
	})
	require.NoError(t, err)
	require.Equal(t, "team-model", decision.DispatchedModel)
}

func TestRouteDeletedTeamRuleNeverFires(t *testing.T) {
	stale := OptimizationRule{
		ID:          "r-stale",
		OrgID:       "org-1",
		ScopeType:   ScopeTeam,
		ScopeID:     "team-deleted",
		Provider:    "openai-chat",
		TargetModel: "stale-model",
		Enabled:     true,
	}
	engine := NewEngine(&staticSource{rules: []OptimizationRule{stale}})

	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		TeamIDs:        nil, // 调用方已不属于任何团队
		RequestedModel: "gpt-4o",
	})
	require.NoError(t, err)
	require.False(t, decision.Rewritten, "引用已删除团队的规则应永不命中且不报错")
}

func TestRouteSourceErrorSurfaces(t *testing.T) {
	engine := NewEngine(&staticSource{err: errors.New("连接失败")})

	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
	})
	require.Error(t, err)
	require.Equal(t, "gpt-4o", decision.DispatchedModel, "出错时保留请求的模型")
}

func TestRouteSameTargetIsNotRewrite(t *testing.T) {
	rule := orgRule("r1", "org-1", "gpt-4o", 0)
	engine := NewEngine(&staticSource{rules: []OptimizationRule{rule}})

	decision, err := engine.Route(context.Background(), RouteInput{
		Provider:       "openai-chat",
		OrgID:          "org-1",
		RequestedModel: "gpt-4o",
	})
	require.NoError(t, err)
	require.Equal(t, "r1", decision.FiredRuleID)
	require.False(t, decision.Rewritten, "目标与请求模型相同时不算改写")
}
