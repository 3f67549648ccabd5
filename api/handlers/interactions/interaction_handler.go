package interactions

import (
	"time"

	"gateway/internal/common"
	"gateway/internal/interaction"
	"gateway/internal/middleware"

	"github.com/gin-gonic/gin"
)

// InteractionHandler 交互记录查询
type InteractionHandler struct {
	service *interaction.Service
}

// NewInteractionHandler 创建 InteractionHandler 实例
func NewInteractionHandler(service *interaction.Service) *InteractionHandler {
	return &InteractionHandler{service: service}
}

// List 分页查询组织的交互记录
func (h *InteractionHandler) List(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	var req interaction.ListRequest
	req.PaginationRequest = common.DefaultPagination()
	if err := c.ShouldBindQuery(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	req.OrgID = scope.OrgID

	records, total, err := h.service.List(c.Request.Context(), &req)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseList(c, records, total, &req.PaginationRequest)
}

// Get 查询单条交互记录
func (h *InteractionHandler) Get(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	rec, err := h.service.Get(c.Request.Context(), scope.OrgID, c.Param("id"))
	if err != nil {
		common.ResponseNotFound(c, "交互记录不存在")
		return
	}
	common.ResponseSuccess(c, rec)
}

// Summary 按方言汇总时间窗口内的用量
// 默认窗口为最近 30 天
func (h *InteractionHandler) Summary(c *gin.Context) {
	scope := middleware.GetCallerScope(c)

	until := time.Now().UTC()
	since := until.AddDate(0, 0, -30)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ResponseBadRequest(c, "since 不是合法的 RFC3339 时间")
			return
		}
		since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.ResponseBadRequest(c, "until 不是合法的 RFC3339 时间")
			return
		}
		until = t
	}

	rows, err := h.service.Summarize(c.Request.Context(), scope.OrgID, since, until)
	if err != nil {
		common.ResponseError(c, common.CodeInternalError, err.Error())
		return
	}
	common.ResponseSuccess(c, rows)
}
