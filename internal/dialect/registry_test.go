package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyIsRouteAuthoritative(t *testing.T) {
	r := NewRegistry()

	tag, err := r.Classify("anthropic")
	require.NoError(t, err)
	require.Equal(t, TagAnthropicMessages, tag)

	// OpenAI 兼容厂商各自保留标签
	tag, err = r.Classify("cerebras")
	require.NoError(t, err)
	require.Equal(t, TagCerebrasChat, tag)

	_, err = r.Classify("unknown-vendor")
	require.ErrorIs(t, err, ErrUnsupportedDialect, "未注册的路由应返回不支持的方言")
}

func TestCompatibleVendorsShareValidatorButKeepTags(t *testing.T) {
	r := NewRegistry()
	payload := []byte(`{"model":"m","messages":[{"role":"user","content":"hi"}]}`)

	for _, hint := range []string{"openai", "cerebras", "mistral", "vllm", "ollama", "zhipuai"} {
		tag, err := r.Classify(hint)
		require.NoError(t, err)
		d, err := r.Resolve(tag)
		require.NoError(t, err)
		require.Equal(t, tag, d.Tag)
		require.Equal(t, TokenizerTiktoken, d.Tokenizer)

		profile, err := d.ValidateRequest(payload)
		require.NoError(t, err, "兼容厂商应接受同一结构")
		require.Equal(t, "m", profile.Model)
	}
}

func TestResolveUnknownTag(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(Tag("nope"))
	require.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestAnthropicUsesDeclaredTokenizer(t *testing.T) {
	r := NewRegistry()
	d, err := r.Resolve(TagAnthropicMessages)
	require.NoError(t, err)
	require.Equal(t, TokenizerAnthropic, d.Tokenizer)
}
