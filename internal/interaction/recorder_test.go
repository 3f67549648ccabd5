package interaction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gateway/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	_ = logger.Init("debug", "console", "stdout")
}

func setupInteractionTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:interactions_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "打开测试数据库失败")

	err = db.AutoMigrate(&Interaction{})
	require.NoError(t, err, "迁移测试表失败")
	return db
}

func TestRecorderLifecycleComplete(t *testing.T) {
	db := setupInteractionTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	id, err := recorder.Begin(ctx, &BeginInput{
		OrgID:                "org-1",
		TeamID:               "team-a",
		UserID:               "user-1",
		Provider:             "openai-chat",
		RequestedModel:       "gpt-4o",
		EstimatedInputTokens: 120,
		OriginalPayload:      []byte(`{"model":"gpt-4o"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var rec Interaction
	require.NoError(t, db.First(&rec, "id = ?", id).Error)
	require.Equal(t, StatusPending, rec.Status)
	require.Equal(t, "gpt-4o", rec.DispatchedModel, "未改写前生效模型等于请求模型")
	require.Nil(t, rec.FiredRuleID)
	require.Nil(t, rec.CompletedAt)

	ruleID := "rule-1"
	err = recorder.SetEffective(ctx, id, "gpt-4o-mini", &ruleID, []byte(`{"model":"gpt-4o-mini"}`))
	require.NoError(t, err)

	recorder.Complete(ctx, id, &CompleteInput{
		InputTokens:  118,
		OutputTokens: 42,
		HasUsage:     true,
		FinishReason: "stop",
		LatencyMs:    350,
		ResponseBody: []byte(`{"choices":[]}`),
	})

	require.NoError(t, db.First(&rec, "id = ?", id).Error)
	require.Equal(t, StatusCompleted, rec.Status)
	require.Equal(t, "gpt-4o-mini", rec.DispatchedModel)
	require.NotNil(t, rec.FiredRuleID)
	require.Equal(t, "rule-1", *rec.FiredRuleID)
	require.Equal(t, 118, rec.InputTokens)
	require.Equal(t, 42, rec.OutputTokens)
	require.True(t, rec.HasUsage)
	require.Equal(t, "stop", rec.FinishReason)
	require.Equal(t, 120, rec.EstimatedInputTokens, "估算值保留，不被上游回填覆盖")
	require.JSONEq(t, `{"choices":[]}`, string(rec.ResponsePayload))
	require.NotNil(t, rec.CompletedAt)
}

func TestRecorderLifecycleFail(t *testing.T) {
	db := setupInteractionTestDB(t)
	recorder := NewRecorder(db)
	ctx := context.Background()

	id, err := recorder.Begin(ctx, &BeginInput{
		OrgID:           "org-1",
		Provider:        "anthropic-messages",
		RequestedModel:  "claude-3-7-sonnet",
		OriginalPayload: []byte(`{}`),
	})
	require.NoError(t, err)

	recorder.Fail(ctx, id, ErrUpstreamTimeout, 30000)

	var rec Interaction
	require.NoError(t, db.First(&rec, "id = ?", id).Error)
	require.Equal(t, StatusFailed, rec.Status)
	require.Equal(t, ErrUpstreamTimeout, rec.ErrorKind)
	require.Equal(t, int64(30000), rec.LatencyMs)
	require.Empty(t, []byte(rec.ResponsePayload), "失败的调用不落响应载荷")
	require.NotNil(t, rec.CompletedAt)
}
