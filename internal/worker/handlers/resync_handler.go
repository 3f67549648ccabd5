package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"gateway/internal/models"
	"gateway/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type ResyncHandler struct {
	credentials *models.CredentialService
	logger      *zap.Logger
}

func NewResyncHandler(credentials *models.CredentialService, logger *zap.Logger) *ResyncHandler {
	return &ResyncHandler{
		credentials: credentials,
		logger:      logger,
	}
}

func (h *ResyncHandler) HandleResyncModels(ctx context.Context, t *asynq.Task) error {
	var p tasks.ResyncModelsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始模型重同步任务",
		zap.String("credential_id", p.CredentialID),
		zap.Int("model_count", len(p.ModelIDs)),
	)

	count, err := h.credentials.ResyncCredentialModels(ctx, p.OrgID, p.CredentialID, p.ModelIDs)
	if err != nil {
		h.logger.Error("模型重同步失败", zap.String("credential_id", p.CredentialID), zap.Error(err))
		return err
	}

	h.logger.Info("模型重同步完成",
		zap.String("credential_id", p.CredentialID),
		zap.Int("linked", count),
	)
	return nil
}
