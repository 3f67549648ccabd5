package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gateway/internal/common"
	"gateway/internal/security"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CredentialService 管理上游凭证的增删查与解密
type CredentialService struct {
	db *gorm.DB
}

// NewCredentialService 创建服务实例
func NewCredentialService(db *gorm.DB) *CredentialService {
	return &CredentialService{db: db}
}

// CreateCredentialRequest 创建请求
type CreateCredentialRequest struct {
	OrgID        string
	Provider     string
	Name         string
	APIKey       string
	BaseURL      string
	ExtraHeaders map[string]string
	CreatedBy    string
}

// CreateCredential 为指定方言创建凭证
func (s *CredentialService) CreateCredential(ctx context.Context, req *CreateCredentialRequest) (*Credential, error) {
	if req == nil {
		return nil, fmt.Errorf("请求参数不能为空")
	}
	if req.OrgID == "" || req.Provider == "" {
		return nil, fmt.Errorf("org_id 与 provider 必填")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("凭证名称不能为空")
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, fmt.Errorf("API Key 不能为空")
	}

	ciphertext, err := security.EncryptSecret(req.APIKey)
	if err != nil {
		return nil, err
	}

	var extraHeaders datatypes.JSON
	if len(req.ExtraHeaders) > 0 {
		encoded, err := json.Marshal(req.ExtraHeaders)
		if err != nil {
			return nil, fmt.Errorf("序列化附加请求头失败: %w", err)
		}
		extraHeaders = datatypes.JSON(encoded)
	}

	cred := &Credential{
		ID:           uuid.New().String(),
		OrgID:        req.OrgID,
		Provider:     req.Provider,
		Name:         req.Name,
		Ciphertext:   ciphertext,
		BaseURL:      req.BaseURL,
		ExtraHeaders: extraHeaders,
		Status:       "active",
		CreatedBy:    req.CreatedBy,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		return nil, fmt.Errorf("创建凭证失败: %w", err)
	}
	return sanitizeCredential(cred), nil
}

// ListCredentials 返回组织下的凭证列表（不包含密钥）
func (s *CredentialService) ListCredentials(ctx context.Context, orgID, provider string) ([]*Credential, error) {
	query := s.db.WithContext(ctx).
		Model(&Credential{}).
		Where("org_id = ?", orgID)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	var creds []*Credential
	if err := query.Order("created_at DESC").Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("查询凭证失败: %w", err)
	}
	for _, cred := range creds {
		sanitizeCredential(cred)
	}
	return creds, nil
}

// GetCredential 查询单个凭证（不包含密钥）
func (s *CredentialService) GetCredential(ctx context.Context, orgID, credentialID string) (*Credential, error) {
	var cred Credential
	if err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", credentialID, orgID).
		First(&cred).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, common.NewBusinessError(common.CodeCredentialNotFound, "")
		}
		return nil, fmt.Errorf("查询凭证失败: %w", err)
	}
	return sanitizeCredential(&cred), nil
}

// DeleteCredential 删除凭证及其模型关联
func (s *CredentialService) DeleteCredential(ctx context.Context, orgID, credentialID string) error {
	var cred Credential
	if err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", credentialID, orgID).
		First(&cred).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return common.NewBusinessError(common.CodeCredentialNotFound, "")
		}
		return fmt.Errorf("查询凭证失败: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("credential_id = ?", cred.ID).
			Delete(&CredentialModelLink{}).Error; err != nil {
			return fmt.Errorf("删除模型关联失败: %w", err)
		}
		if err := tx.Delete(&cred).Error; err != nil {
			return fmt.Errorf("删除凭证失败: %w", err)
		}
		return nil
	})
}

// ResolveCredential 解密凭证，返回明文密钥与凭证元信息
func (s *CredentialService) ResolveCredential(ctx context.Context, orgID, provider string) (*Credential, string, error) {
	var cred Credential
	if err := s.db.WithContext(ctx).
		Where("org_id = ? AND provider = ? AND status = ?", orgID, provider, "active").
		Order("created_at ASC").
		First(&cred).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", common.NewBusinessError(common.CodeCredentialNotFound, "")
		}
		return nil, "", fmt.Errorf("查询凭证失败: %w", err)
	}
	apiKey, err := security.DecryptSecret(cred.Ciphertext)
	if err != nil {
		return nil, "", err
	}
	return &cred, apiKey, nil
}

func sanitizeCredential(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}
	cred.Ciphertext = nil
	return cred
}
