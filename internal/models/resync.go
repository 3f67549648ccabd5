package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gateway/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 关联表批量插入的单批行数
const linkInsertBatchSize = 500

// ResyncCredentialModels 用上游返回的模型清单整组重建凭证的模型关联
// 删除与批量插入放在同一事务里：任何一步失败都整体回滚，
// 旧的关联与标记保持原样
func (s *CredentialService) ResyncCredentialModels(ctx context.Context, orgID, credentialID string, modelIDs []string) (int, error) {
	var cred Credential
	if err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", credentialID, orgID).
		First(&cred).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, common.NewBusinessError(common.CodeCredentialNotFound, "")
		}
		return 0, fmt.Errorf("查询凭证失败: %w", err)
	}

	seen := make(map[string]struct{}, len(modelIDs))
	unique := make([]string, 0, len(modelIDs))
	for _, id := range modelIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	markers := ResolveMarkers(cred.Provider, unique)
	now := time.Now().UTC()
	links := make([]CredentialModelLink, 0, len(unique))
	for _, id := range unique {
		links = append(links, CredentialModelLink{
			ID:           uuid.New().String(),
			CredentialID: cred.ID,
			ModelID:      id,
			IsFastest:    id == markers.Fastest,
			IsBest:       id == markers.Best,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("credential_id = ?", cred.ID).
			Delete(&CredentialModelLink{}).Error; err != nil {
			return fmt.Errorf("清空模型关联失败: %w", err)
		}
		if len(links) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(links, linkInsertBatchSize).Error; err != nil {
			return fmt.Errorf("写入模型关联失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(links), nil
}

// ListLinkedModels 返回凭证下的全部模型关联
func (s *CredentialService) ListLinkedModels(ctx context.Context, credentialID string) ([]CredentialModelLink, error) {
	var links []CredentialModelLink
	if err := s.db.WithContext(ctx).
		Where("credential_id = ?", credentialID).
		Order("model_id ASC").
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("查询模型关联失败: %w", err)
	}
	return links, nil
}

// GetFastestModel 返回凭证下标记为 fastest 的模型
// 没有命中标记时退化为字典序最小的模型，空凭证返回空串
func (s *CredentialService) GetFastestModel(ctx context.Context, credentialID string) (string, error) {
	return s.getMarkedModel(ctx, credentialID, "is_fastest")
}

// GetBestModel 返回凭证下标记为 best 的模型，退化行为同 GetFastestModel
func (s *CredentialService) GetBestModel(ctx context.Context, credentialID string) (string, error) {
	return s.getMarkedModel(ctx, credentialID, "is_best")
}

func (s *CredentialService) getMarkedModel(ctx context.Context, credentialID, column string) (string, error) {
	var link CredentialModelLink
	err := s.db.WithContext(ctx).
		Where("credential_id = ? AND "+column+" = ?", credentialID, true).
		First(&link).Error
	if err == nil {
		return link.ModelID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", fmt.Errorf("查询模型关联失败: %w", err)
	}

	links, err := s.ListLinkedModels(ctx, credentialID)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", nil
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.ModelID
	}
	sort.Strings(ids)
	return ids[0], nil
}

// IsModelLinked 判断模型是否挂在组织的某个凭证下
func (s *CredentialService) IsModelLinked(ctx context.Context, orgID, provider, modelID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&CredentialModelLink{}).
		Joins("JOIN credentials ON credentials.id = credential_model_links.credential_id").
		Where("credentials.org_id = ? AND credentials.provider = ? AND credential_model_links.model_id = ?",
			orgID, provider, modelID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询模型关联失败: %w", err)
	}
	return count > 0, nil
}
