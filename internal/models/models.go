package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Credential 上游凭证
// 密钥以 AES-GCM 密文落库，查询接口返回前一律清空
type Credential struct {
	ID           string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	OrgID        string         `gorm:"type:varchar(64);not null;index:idx_credentials_org" json:"orgId"`
	Provider     string         `gorm:"type:varchar(32);not null;index:idx_credentials_org" json:"provider"`
	Name         string         `gorm:"type:varchar(128);not null" json:"name"`
	Ciphertext   []byte         `gorm:"type:bytea" json:"-"`
	BaseURL      string         `gorm:"type:varchar(512)" json:"baseUrl,omitempty"`
	ExtraHeaders datatypes.JSON `gorm:"type:jsonb" json:"extraHeaders,omitempty"`
	Status       string         `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedBy    string         `gorm:"type:varchar(64)" json:"createdBy,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TableName 指定表名
func (Credential) TableName() string {
	return "credentials"
}

// DecodeExtraHeaders 解析凭证的附加请求头
// 未配置时返回 nil
func (c *Credential) DecodeExtraHeaders() (map[string]string, error) {
	if len(c.ExtraHeaders) == 0 {
		return nil, nil
	}
	var headers map[string]string
	if err := json.Unmarshal(c.ExtraHeaders, &headers); err != nil {
		return nil, fmt.Errorf("解析附加请求头失败: %w", err)
	}
	return headers, nil
}

// CredentialModelLink 凭证与上游模型的关联
// 每次重同步整组重建，fastest/best 标记由解析器计算后随行写入
type CredentialModelLink struct {
	ID           string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	CredentialID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_link_credential_model" json:"credentialId"`
	ModelID      string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_link_credential_model" json:"modelId"`
	IsFastest    bool      `gorm:"not null;default:false" json:"isFastest"`
	IsBest       bool      `gorm:"not null;default:false" json:"isBest"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (CredentialModelLink) TableName() string {
	return "credential_model_links"
}
