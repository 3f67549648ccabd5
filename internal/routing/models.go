package routing

import "time"

// ScopeType 规则作用域类型
type ScopeType string

const (
	// ScopeOrganization 组织级规则，对组织内所有调用方生效
	ScopeOrganization ScopeType = "organization"
	// ScopeTeam 团队级规则，只对该团队成员生效，不会外溢到组织其他团队
	ScopeTeam ScopeType = "team"
)

// OptimizationRule 模型优化路由规则
// 条件至多各一个：内容长度上限、工具有无；两者都为空时匹配一切。
// 结构合法性在写入时校验，求值器假定规则是良构的
type OptimizationRule struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	OrgID     string    `json:"orgId" gorm:"type:uuid;not null;index"`
	ScopeType ScopeType `json:"scopeType" gorm:"size:20;not null"`
	ScopeID   string    `json:"scopeId" gorm:"type:uuid;not null;index"` // 组织 ID 或同组织内的团队 ID
	Provider  string    `json:"provider" gorm:"size:50;not null;index"`  // 方言标签

	// 条件（空指针表示该条件不存在）
	MaxLength *int  `json:"maxLength,omitempty"` // 内容长度条件：文本总长 ≤ N 时为真
	HasTools  *bool `json:"hasTools,omitempty"`  // 工具条件：请求带非空工具列表 == 配置值时为真

	TargetModel string `json:"targetModel" gorm:"size:255;not null"`
	Enabled     bool   `json:"enabled" gorm:"default:true;index"`
	Priority    int    `json:"priority" gorm:"not null;default:0"` // 调用方维护的顺序，越小优先级越高

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (OptimizationRule) TableName() string {
	return "optimization_rules"
}

// ModelPricing 模型定价
// 只用于给候选目标模型按成本排序和展示节省金额，不是路由的前置条件：
// 目标模型没有定价记录时规则照常生效
type ModelPricing struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	Provider string `json:"provider" gorm:"size:50;not null;uniqueIndex:idx_pricing_provider_model"`
	ModelID  string `json:"modelId" gorm:"size:255;not null;uniqueIndex:idx_pricing_provider_model"`

	// 每百万 Token 单价（美元）
	InputPerMillion  float64 `json:"inputPerMillion" gorm:"type:decimal(12,6)"`
	OutputPerMillion float64 `json:"outputPerMillion" gorm:"type:decimal(12,6)"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (ModelPricing) TableName() string {
	return "model_pricing"
}
