package interaction

import (
	"time"

	"gorm.io/datatypes"
)

// 交互记录状态
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// 失败原因分类
const (
	ErrValidationFailed = "validation_failed"
	ErrUpstreamDispatch = "upstream_dispatch_failed"
	ErrUpstreamTimeout  = "upstream_timeout"
	ErrInternal         = "internal"
)

// Interaction 一次完整的网关调用记录
// 请求进入网关时以 pending 落库，路由改写后补写生效载荷，
// 上游返回或失败后收尾；原始载荷与生效载荷都保留原样 JSON
type Interaction struct {
	ID       string `gorm:"type:varchar(64);primaryKey" json:"id"`
	OrgID    string `gorm:"type:varchar(64);not null;index:idx_interactions_org_time,priority:1" json:"orgId"`
	TeamID   string `gorm:"type:varchar(64);index" json:"teamId,omitempty"`
	UserID   string `gorm:"type:varchar(64)" json:"userId,omitempty"`
	AgentID  string `gorm:"type:varchar(64);index" json:"agentId,omitempty"`
	TraceID  string `gorm:"type:varchar(64)" json:"traceId,omitempty"`
	Provider string `gorm:"type:varchar(32);not null" json:"provider"`

	RequestedModel  string  `gorm:"type:varchar(128);not null" json:"requestedModel"`
	DispatchedModel string  `gorm:"type:varchar(128)" json:"dispatchedModel,omitempty"`
	FiredRuleID     *string `gorm:"type:varchar(64)" json:"firedRuleId,omitempty"`

	EstimatedInputTokens int  `gorm:"not null;default:0" json:"estimatedInputTokens"`
	EstimateDegraded     bool `gorm:"not null;default:false" json:"estimateDegraded"`
	InputTokens          int  `gorm:"not null;default:0" json:"inputTokens"`
	OutputTokens         int  `gorm:"not null;default:0" json:"outputTokens"`
	HasUsage             bool `gorm:"not null;default:false" json:"hasUsage"`

	Status       string `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ErrorKind    string `gorm:"type:varchar(32)" json:"errorKind,omitempty"`
	FinishReason string `gorm:"type:varchar(32)" json:"finishReason,omitempty"`
	LatencyMs    int64  `gorm:"not null;default:0" json:"latencyMs"`

	OriginalPayload  datatypes.JSON `gorm:"type:jsonb" json:"originalPayload,omitempty"`
	EffectivePayload datatypes.JSON `gorm:"type:jsonb" json:"effectivePayload,omitempty"`
	ResponsePayload  datatypes.JSON `gorm:"type:jsonb" json:"responsePayload,omitempty"` // 失败的调用保持为空

	CreatedAt   time.Time  `gorm:"index:idx_interactions_org_time,priority:2" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TableName 指定表名
func (Interaction) TableName() string {
	return "interactions"
}
