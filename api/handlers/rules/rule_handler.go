package rules

import (
	"errors"

	"gateway/internal/common"
	"gateway/internal/middleware"
	"gateway/internal/routing"

	"github.com/gin-gonic/gin"
)

// RuleHandler 优化规则与模型定价管理
type RuleHandler struct {
	service *routing.Service
}

// NewRuleHandler 创建 RuleHandler 实例
func NewRuleHandler(service *routing.Service) *RuleHandler {
	return &RuleHandler{service: service}
}

// CreateRule 创建优化规则
func (h *RuleHandler) CreateRule(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	var req routing.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.OrgID = scope.OrgID

	rule, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		respondRuleError(c, err)
		return
	}
	common.ResponseCreated(c, rule)
}

// ListRules 查询组织的全部规则
func (h *RuleHandler) ListRules(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	rules, err := h.service.ListRules(c.Request.Context(), scope.OrgID)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, rules)
}

// UpdateRule 更新规则
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	scope := middleware.GetCallerScope(c)
	ruleID := c.Param("id")

	var req routing.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), scope.OrgID, ruleID, &req)
	if err != nil {
		respondRuleError(c, err)
		return
	}
	common.ResponseSuccess(c, rule)
}

// DeleteRule 删除规则
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	scope := middleware.GetCallerScope(c)
	ruleID := c.Param("id")

	if err := h.service.DeleteRule(c.Request.Context(), scope.OrgID, ruleID); err != nil {
		respondRuleError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// UpsertPricing 写入模型定价
func (h *RuleHandler) UpsertPricing(c *gin.Context) {
	var pricing routing.ModelPricing
	if err := c.ShouldBindJSON(&pricing); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	if err := h.service.UpsertPricing(c.Request.Context(), &pricing); err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, pricing)
}

// ListPricing 按方言查询定价，输入单价升序
func (h *RuleHandler) ListPricing(c *gin.Context) {
	provider := c.Query("provider")
	if provider == "" {
		common.ResponseBadRequest(c, "缺少 provider 参数")
		return
	}

	rows, err := h.service.ListPricingByCost(c.Request.Context(), provider)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, rows)
}

func respondRuleError(c *gin.Context, err error) {
	var bizErr *common.BusinessError
	if errors.As(err, &bizErr) {
		common.ResponseBusinessError(c, bizErr)
		return
	}
	common.ResponseError(c, common.CodeInternalError, err.Error())
}
