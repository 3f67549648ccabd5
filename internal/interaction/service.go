package interaction

import (
	"context"
	"fmt"
	"time"

	"gateway/internal/common"
)

// ListRequest 交互记录查询条件
type ListRequest struct {
	common.PaginationRequest
	OrgID    string     `form:"-"`
	TeamID   string     `form:"teamId"`
	UserID   string     `form:"userId"`
	AgentID  string     `form:"agentId"`
	Provider string     `form:"provider"`
	Status   string     `form:"status"`
	Since    *time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Until    *time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Service 交互记录的查询服务，写入走 Recorder
type Service struct {
	recorder *Recorder
}

// NewService 创建查询服务
func NewService(recorder *Recorder) *Service {
	return &Service{recorder: recorder}
}

// List 按条件分页查询组织的交互记录
func (s *Service) List(ctx context.Context, req *ListRequest) ([]Interaction, int64, error) {
	if req == nil || req.OrgID == "" {
		return nil, 0, fmt.Errorf("缺少组织 ID")
	}
	query := s.recorder.db.WithContext(ctx).
		Model(&Interaction{}).
		Where("org_id = ?", req.OrgID)
	if req.TeamID != "" {
		query = query.Where("team_id = ?", req.TeamID)
	}
	if req.UserID != "" {
		query = query.Where("user_id = ?", req.UserID)
	}
	if req.AgentID != "" {
		query = query.Where("agent_id = ?", req.AgentID)
	}
	if req.Provider != "" {
		query = query.Where("provider = ?", req.Provider)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Since != nil {
		query = query.Where("created_at >= ?", *req.Since)
	}
	if req.Until != nil {
		query = query.Where("created_at < ?", *req.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("查询交互记录失败: %w", err)
	}

	var records []Interaction
	if err := query.
		Order("created_at DESC").
		Offset(req.GetOffset()).
		Limit(req.GetPageSize()).
		Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("查询交互记录失败: %w", err)
	}
	return records, total, nil
}

// Get 查询单条交互记录
func (s *Service) Get(ctx context.Context, orgID, id string) (*Interaction, error) {
	var rec Interaction
	if err := s.recorder.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&rec).Error; err != nil {
		return nil, fmt.Errorf("查询交互记录失败: %w", err)
	}
	return &rec, nil
}

// UsageSummary 组织在时间窗口内的用量汇总
type UsageSummary struct {
	Provider     string `json:"provider"`
	Calls        int64  `json:"calls"`
	InputTokens  int64  `json:"inputTokens"`
	OutputTokens int64  `json:"outputTokens"`
}

// Summarize 按方言汇总组织的已完成调用与 token 用量
func (s *Service) Summarize(ctx context.Context, orgID string, since, until time.Time) ([]UsageSummary, error) {
	if orgID == "" {
		return nil, fmt.Errorf("缺少组织 ID")
	}
	var rows []UsageSummary
	err := s.recorder.db.WithContext(ctx).
		Model(&Interaction{}).
		Select("provider, COUNT(*) AS calls, SUM(input_tokens) AS input_tokens, SUM(output_tokens) AS output_tokens").
		Where("org_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			orgID, StatusCompleted, since, until).
		Group("provider").
		Order("provider ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("汇总用量失败: %w", err)
	}
	return rows, nil
}
