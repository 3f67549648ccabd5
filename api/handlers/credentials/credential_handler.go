package credentials

import (
	"errors"

	"gateway/internal/common"
	"gateway/internal/middleware"
	"gateway/internal/models"
	"gateway/internal/worker"
	"gateway/internal/worker/tasks"

	"github.com/gin-gonic/gin"
)

type createCredentialRequest struct {
	Provider     string            `json:"provider" binding:"required"`
	Name         string            `json:"name" binding:"required"`
	APIKey       string            `json:"apiKey" binding:"required"`
	BaseURL      string            `json:"baseUrl"`
	ExtraHeaders map[string]string `json:"extraHeaders"`
}

type resyncRequest struct {
	ModelIDs []string `json:"modelIds" binding:"required"`
	Async    bool     `json:"async"`
}

// CredentialHandler 上游凭证管理
type CredentialHandler struct {
	service *models.CredentialService
	queue   *worker.Client
}

// NewCredentialHandler 创建 CredentialHandler 实例
// queue 为 nil 时重同步只支持同步执行
func NewCredentialHandler(service *models.CredentialService, queue *worker.Client) *CredentialHandler {
	return &CredentialHandler{
		service: service,
		queue:   queue,
	}
}

// CreateCredential 创建凭证
func (h *CredentialHandler) CreateCredential(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	var req createCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	cred, err := h.service.CreateCredential(c.Request.Context(), &models.CreateCredentialRequest{
		OrgID:        scope.OrgID,
		Provider:     req.Provider,
		Name:         req.Name,
		APIKey:       req.APIKey,
		BaseURL:      req.BaseURL,
		ExtraHeaders: req.ExtraHeaders,
		CreatedBy:    scope.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseCreated(c, cred)
}

// ListCredentials 查询凭证列表
func (h *CredentialHandler) ListCredentials(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	creds, err := h.service.ListCredentials(c.Request.Context(), scope.OrgID, c.Query("provider"))
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, creds)
}

// GetCredential 查询单个凭证
func (h *CredentialHandler) GetCredential(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	cred, err := h.service.GetCredential(c.Request.Context(), scope.OrgID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, cred)
}

// DeleteCredential 删除凭证及其模型关联
func (h *CredentialHandler) DeleteCredential(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	if err := h.service.DeleteCredential(c.Request.Context(), scope.OrgID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// ResyncModels 用给定的模型清单重建凭证的模型关联
// async 为真时投递后台任务，否则同步执行
func (h *CredentialHandler) ResyncModels(c *gin.Context) {
	scope := middleware.GetCallerScope(c)
	credentialID := c.Param("id")

	var req resyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if req.Async && h.queue != nil {
		taskID, err := h.queue.EnqueueResyncModels(&tasks.ResyncModelsPayload{
			OrgID:        scope.OrgID,
			CredentialID: credentialID,
			ModelIDs:     req.ModelIDs,
		})
		if err != nil {
			common.ResponseError(c, common.CodeInternalError, err.Error())
			return
		}
		common.ResponseSuccess(c, gin.H{"taskId": taskID})
		return
	}

	count, err := h.service.ResyncCredentialModels(c.Request.Context(), scope.OrgID, credentialID, req.ModelIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"linked": count})
}

// ListModels 查询凭证下的模型关联
func (h *CredentialHandler) ListModels(c *gin.Context) {
	scope := middleware.GetCallerScope(c)
	credentialID := c.Param("id")

	// 凭证归属校验
	if _, err := h.service.GetCredential(c.Request.Context(), scope.OrgID, credentialID); err != nil {
		respondError(c, err)
		return
	}

	links, err := h.service.ListLinkedModels(c.Request.Context(), credentialID)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, links)
}

// GetMarkedModels 查询凭证下的 fastest/best 模型
func (h *CredentialHandler) GetMarkedModels(c *gin.Context) {
	scope := middleware.GetCallerScope(c)
	credentialID := c.Param("id")

	if _, err := h.service.GetCredential(c.Request.Context(), scope.OrgID, credentialID); err != nil {
		respondError(c, err)
		return
	}

	fastest, err := h.service.GetFastestModel(c.Request.Context(), credentialID)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	best, err := h.service.GetBestModel(c.Request.Context(), credentialID)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	if fastest == "" && best == "" {
		bizErr := common.NewBusinessError(common.CodeModelNotLinked, "")
		common.ResponseBusinessError(c, bizErr)
		return
	}
	common.ResponseSuccess(c, gin.H{"fastest": fastest, "best": best})
}

func respondError(c *gin.Context, err error) {
	var bizErr *common.BusinessError
	if errors.As(err, &bizErr) {
		common.ResponseBusinessError(c, bizErr)
		return
	}
	common.ResponseError(c, common.CodeInternalError, err.Error())
}
