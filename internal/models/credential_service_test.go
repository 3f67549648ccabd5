package models

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gateway/internal/common"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCredentialTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:credentials_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "打开测试数据库失败")

	err = db.AutoMigrate(&Credential{}, &CredentialModelLink{})
	require.NoError(t, err, "迁移测试表失败")
	return db
}

func createTestCredential(t *testing.T, svc *CredentialService, orgID, provider string) *Credential {
	t.Helper()
	cred, err := svc.CreateCredential(context.Background(), &CreateCredentialRequest{
		OrgID:    orgID,
		Provider: provider,
		Name:     "测试凭证",
		APIKey:   "sk-test-key",
	})
	require.NoError(t, err)
	return cred
}

func requireCredentialBusinessCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	bizErr, ok := err.(*common.BusinessError)
	require.True(t, ok, "应返回业务错误")
	require.Equal(t, code, bizErr.Code)
}

func TestCreateCredentialNeverReturnsCiphertext(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred := createTestCredential(t, svc, "org-1", "openai-chat")
	require.NotEmpty(t, cred.ID)
	require.Equal(t, "active", cred.Status)
	require.Nil(t, cred.Ciphertext, "返回的凭证不应携带密文")

	got, err := svc.GetCredential(ctx, "org-1", cred.ID)
	require.NoError(t, err)
	require.Nil(t, got.Ciphertext)

	list, err := svc.ListCredentials(ctx, "org-1", "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Nil(t, list[0].Ciphertext)
}

func TestCreateCredentialPersistsExtraHeaders(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred, err := svc.CreateCredential(ctx, &CreateCredentialRequest{
		OrgID:    "org-1",
		Provider: "anthropic-messages",
		Name:     "带附加头的凭证",
		APIKey:   "sk-test-key",
		ExtraHeaders: map[string]string{
			"X-Proxy-Token": "proxy-secret",
		},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"X-Proxy-Token":"proxy-secret"}`, string(cred.ExtraHeaders))

	got, err := svc.GetCredential(ctx, "org-1", cred.ID)
	require.NoError(t, err)
	headers, err := got.DecodeExtraHeaders()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"X-Proxy-Token": "proxy-secret"}, headers)
}

func TestDecodeExtraHeadersEmpty(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))

	cred := createTestCredential(t, svc, "org-1", "openai-chat")
	headers, err := cred.DecodeExtraHeaders()
	require.NoError(t, err)
	require.Nil(t, headers, "未配置附加头时应返回 nil")
}

func TestResolveCredentialDecryptsKey(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	createTestCredential(t, svc, "org-1", "openai-chat")

	cred, apiKey, err := svc.ResolveCredential(ctx, "org-1", "openai-chat")
	require.NoError(t, err)
	require.Equal(t, "sk-test-key", apiKey, "应解出创建时的明文密钥")
	require.Equal(t, "openai-chat", cred.Provider)
}

func TestResolveCredentialMissing(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))

	_, _, err := svc.ResolveCredential(context.Background(), "org-1", "openai-chat")
	requireCredentialBusinessCode(t, err, common.CodeCredentialNotFound)
}

func TestGetCredentialWrongOrgNotFound(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))

	cred := createTestCredential(t, svc, "org-1", "openai-chat")

	_, err := svc.GetCredential(context.Background(), "org-2", cred.ID)
	requireCredentialBusinessCode(t, err, common.CodeCredentialNotFound)
}

func TestDeleteCredentialRemovesLinks(t *testing.T) {
	svc := NewCredentialService(setupCredentialTestDB(t))
	ctx := context.Background()

	cred := createTestCredential(t, svc, "org-1", "openai-chat")
	_, err := svc.ResyncCredentialModels(ctx, "org-1", cred.ID, []string{"gpt-4o", "gpt-4o-mini"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCredential(ctx, "org-1", cred.ID))

	links, err := svc.ListLinkedModels(ctx, cred.ID)
	require.NoError(t, err)
	require.Empty(t, links, "删除凭证应连带清理模型关联")
}
