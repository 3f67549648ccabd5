package dialect

import "fmt"

// Registry 方言注册表
// 进程启动时构建一次，注入到流水线，不做任何内容嗅探：
// 多个厂商共用 OpenAI 兼容结构，只有入站路由能区分它们
type Registry struct {
	dialects map[Tag]*Dialect
	routes   map[string]Tag
}

// NewRegistry 创建注册表并注册全部内置方言
func NewRegistry() *Registry {
	r := &Registry{
		dialects: make(map[Tag]*Dialect),
		routes:   make(map[string]Tag),
	}

	// OpenAI 及其兼容厂商：共用一个校验器，各自保留标签
	openAICompatible := map[string]Tag{
		"openai":   TagOpenAIChat,
		"cerebras": TagCerebrasChat,
		"mistral":  TagMistralChat,
		"vllm":     TagVLLMChat,
		"ollama":   TagOllamaChat,
		"zhipuai":  TagZhipuaiChat,
	}
	for vendor, tag := range openAICompatible {
		r.register(vendor, &Dialect{
			Tag:              tag,
			Tokenizer:        TokenizerTiktoken,
			ValidateRequest:  validateOpenAIRequest,
			ValidateResponse: validateOpenAIResponse,
		})
	}

	r.register("anthropic", &Dialect{
		Tag:              TagAnthropicMessages,
		Tokenizer:        TokenizerAnthropic,
		ValidateRequest:  validateAnthropicRequest,
		ValidateResponse: validateAnthropicResponse,
	})

	r.register("gemini", &Dialect{
		Tag:              TagGeminiGenerateContent,
		Tokenizer:        TokenizerTiktoken,
		ValidateRequest:  validateGeminiRequest,
		ValidateResponse: validateGeminiResponse,
	})

	r.register("bedrock", &Dialect{
		Tag:              TagBedrockConverse,
		Tokenizer:        TokenizerTiktoken,
		ValidateRequest:  validateBedrockRequest,
		ValidateResponse: validateBedrockResponse,
	})

	r.register("cohere", &Dialect{
		Tag:              TagCohereChat,
		Tokenizer:        TokenizerTiktoken,
		ValidateRequest:  validateCohereRequest,
		ValidateResponse: validateCohereResponse,
	})

	return r
}

func (r *Registry) register(routeHint string, d *Dialect) {
	r.dialects[d.Tag] = d
	r.routes[routeHint] = d.Tag
}

// Resolve 根据方言标签返回校验器与计数适配器名称
func (r *Registry) Resolve(tag Tag) (*Dialect, error) {
	d, ok := r.dialects[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, tag)
	}
	return d, nil
}

// Classify 由入站路由推导方言标签
// 路由是唯一权威来源，载荷内容不参与判定
func (r *Registry) Classify(routeHint string) (Tag, error) {
	tag, ok := r.routes[routeHint]
	if !ok {
		return "", fmt.Errorf("%w: 路由 %q 未注册", ErrUnsupportedDialect, routeHint)
	}
	return tag, nil
}

// Tags 返回全部已注册的方言标签
func (r *Registry) Tags() []Tag {
	tags := make([]Tag, 0, len(r.dialects))
	for tag := range r.dialects {
		tags = append(tags, tag)
	}
	return tags
}
