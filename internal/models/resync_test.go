package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResyncReplacesLinksAndSetsMarkers(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred := createTestCredential(t, svc, "org-1", "openai-chat")

	count, err := svc.ResyncCredentialModels(ctx, "org-1", cred.ID, []string{"gpt-3.5-turbo"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// 重复 ID 去重，整组替换旧关联
	count, err = svc.ResyncCredentialModels(ctx, "org-1", cred.ID, []string{
		"gpt-4o", "gpt-4o-mini", "o1-preview", "gpt-4o", "",
	})
	require.NoError(t, err)
	require.Equal(t, 3, count)

	links, err := svc.ListLinkedModels(ctx, cred.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	for _, link := range links {
		require.NotEqual(t, "gpt-3.5-turbo", link.ModelID, "旧关联应被整组替换")
	}

	fastest, err := svc.GetFastestModel(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", fastest)

	best, err := svc.GetBestModel(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, "o1-preview", best)
}

func TestResyncFailureKeepsOldLinks(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred := createTestCredential(t, svc, "org-1", "openai-chat")
	_, err := svc.ResyncCredentialModels(ctx, "org-1", cred.ID, []string{"gpt-4o"})
	require.NoError(t, err)

	// 已取消的上下文让事务失败，旧关联必须原样保留
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.ResyncCredentialModels(canceled, "org-1", cred.ID, []string{"gpt-4o-mini"})
	require.Error(t, err)

	links, err := svc.ListLinkedModels(ctx, cred.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "gpt-4o", links[0].ModelID, "失败的重同步不应留下部分结果")
}

func TestMarkedModelFallbackAndEmpty(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred := createTestCredential(t, svc, "org-1", "openai-chat")

	// 空凭证：两个标记都返回空串
	fastest, err := svc.GetFastestModel(ctx, cred.ID)
	require.NoError(t, err)
	require.Empty(t, fastest)

	// 无模式命中时退化为字典序最小的模型
	_, err = svc.ResyncCredentialModels(ctx, "org-1", cred.ID, []string{"zulu-model", "alpha-model"})
	require.NoError(t, err)

	fastest, err = svc.GetFastestModel(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, "alpha-model", fastest)

	best, err := svc.GetBestModel(ctx, cred.ID)
	require.NoError(t, err)
	require.Equal(t, "alpha-model", best)
}

func TestIsModelLinkedScopedToOrg(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred := createTestCredential(t, svc, "org-1", "openai-chat")
	_, err := svc.ResyncCredentialModels(ctx, "org-1", cred.ID, []string{"gpt-4o"})
	require.NoError(t, err)

	linked, err := svc.IsModelLinked(ctx, "org-1", "openai-chat", "gpt-4o")
	require.NoError(t, err)
	require.True(t, linked)

	linked, err = svc.IsModelLinked(ctx, "org-2", "openai-chat", "gpt-4o")
	require.NoError(t, err)
	require.False(t, linked, "模型关联不应跨组织可见")

	linked, err = svc.IsModelLinked(ctx, "org-1", "openai-chat", "gpt-4o-mini")
	require.NoError(t, err)
	require.False(t, linked)
}
