package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeResyncModels = "credentials:resync_models"
)

// ResyncModelsPayload 凭证模型重同步任务载荷
// ModelIDs 来自触发重同步的管理请求，空列表会清空该凭证的全部关联
type ResyncModelsPayload struct {
	OrgID        string   `json:"org_id"`
	CredentialID string   `json:"credential_id"`
	ModelIDs     []string `json:"model_ids,omitempty"`
}

// NewResyncModelsTask 构造重同步任务
func NewResyncModelsTask(p *ResyncModelsPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("序列化任务载荷失败: %w", err)
	}
	return asynq.NewTask(TypeResyncModels, payload), nil
}
