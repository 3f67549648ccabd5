package middleware

import (
	"context"
	"strings"

	"gateway/internal/common"

	"github.com/gin-gonic/gin"
)

// CallerScope 调用方作用域
// 身份解析由上游认证代理完成，网关只消费它注入的头部
type CallerScope struct {
	OrgID   string   `json:"org_id"`
	TeamIDs []string `json:"team_ids,omitempty"`
	UserID  string   `json:"user_id,omitempty"`
	AgentID string   `json:"agent_id,omitempty"`
}

// 作用域头部常量
const (
	HeaderOrgID   = "X-Org-ID"
	HeaderTeamIDs = "X-Team-IDs"
	HeaderUserID  = "X-User-ID"
	HeaderAgentID = "X-Agent-ID"
)

const callerScopeKey contextKey = "caller_scope"

// CallerScopeMiddleware 调用方作用域中间件
// 组织 ID 必填；团队 ID 列表为逗号分隔，可为空
func CallerScopeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := strings.TrimSpace(c.GetHeader(HeaderOrgID))
		if orgID == "" {
			common.ResponseError(c, common.CodeUnauthorized, "缺少 "+HeaderOrgID+" 头部")
			c.Abort()
			return
		}

		scope := &CallerScope{
			OrgID:   orgID,
			UserID:  strings.TrimSpace(c.GetHeader(HeaderUserID)),
			AgentID: strings.TrimSpace(c.GetHeader(HeaderAgentID)),
		}
		for _, id := range strings.Split(c.GetHeader(HeaderTeamIDs), ",") {
			if id = strings.TrimSpace(id); id != "" {
				scope.TeamIDs = append(scope.TeamIDs, id)
			}
		}

		c.Set(string(callerScopeKey), scope)
		ctx := context.WithValue(c.Request.Context(), callerScopeKey, scope)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetCallerScope 从 Gin 上下文获取调用方作用域
func GetCallerScope(c *gin.Context) *CallerScope {
	if v, exists := c.Get(string(callerScopeKey)); exists {
		if scope, ok := v.(*CallerScope); ok {
			return scope
		}
	}
	return nil
}

// CallerScopeFromContext 从 context.Context 获取调用方作用域
func CallerScopeFromContext(ctx context.Context) *CallerScope {
	if v := ctx.Value(callerScopeKey); v != nil {
		if scope, ok := v.(*CallerScope); ok {
			return scope
		}
	}
	return nil
}

// InTeam 判断调用方是否属于指定团队
func (s *CallerScope) InTeam(teamID string) bool {
	for _, id := range s.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
