package models

import (
	"sort"
	"strings"
)

// MarkerPatterns 一个标记（fastest 或 best）的模式表
// 模式按声明顺序即优先级：前面的模式命中后，后面的不再参与
type MarkerPatterns []string

// 各方言的默认模式表
// 未列出的方言使用 defaultFastestPatterns / defaultBestPatterns
var (
	fastestPatternsByProvider = map[string]MarkerPatterns{
		"openai-chat":             {"mini", "nano", "turbo"},
		"anthropic-messages":      {"haiku"},
		"gemini-generateContent":  {"flash-lite", "flash"},
		"bedrock-converse":        {"haiku", "lite", "micro"},
		"cohere-chat":             {"light"},
	}
	bestPatternsByProvider = map[string]MarkerPatterns{
		"openai-chat":             {"o1", "gpt-4o", "gpt-4"},
		"anthropic-messages":      {"opus", "sonnet"},
		"gemini-generateContent":  {"pro", "ultra"},
		"bedrock-converse":        {"opus", "sonnet", "premier"},
		"cohere-chat":             {"plus", "command-a"},
	}
	defaultFastestPatterns = MarkerPatterns{"mini", "flash", "lite", "nano", "haiku", "light", "small", "tiny"}
	defaultBestPatterns    = MarkerPatterns{"opus", "pro", "large", "max", "ultra"}
)

// FastestPatterns 返回方言对应的 fastest 模式表
func FastestPatterns(provider string) MarkerPatterns {
	if p, ok := fastestPatternsByProvider[provider]; ok {
		return p
	}
	return defaultFastestPatterns
}

// BestPatterns 返回方言对应的 best 模式表
func BestPatterns(provider string) MarkerPatterns {
	if p, ok := bestPatternsByProvider[provider]; ok {
		return p
	}
	return defaultBestPatterns
}

// ResolveMarker 在模型列表里解析一个标记
// 按模式表顺序逐个扫描：第一个有命中的模式胜出，命中集合内
// 取字典序最小的模型 ID；全部模式落空时返回空串
func ResolveMarker(modelIDs []string, patterns MarkerPatterns) string {
	if len(modelIDs) == 0 {
		return ""
	}
	sorted := make([]string, len(modelIDs))
	copy(sorted, modelIDs)
	sort.Strings(sorted)

	for _, pattern := range patterns {
		lowered := strings.ToLower(pattern)
		for _, id := range sorted {
			if strings.Contains(strings.ToLower(id), lowered) {
				return id
			}
		}
	}
	return ""
}

// MarkerSet 一组模型的标记解析结果
type MarkerSet struct {
	Fastest string
	Best    string
}

// ResolveMarkers 对一组模型同时解析 fastest 与 best
// 两个标记互相独立，同一个模型可以同时是 fastest 和 best
func ResolveMarkers(provider string, modelIDs []string) MarkerSet {
	return MarkerSet{
		Fastest: ResolveMarker(modelIDs, FastestPatterns(provider)),
		Best:    ResolveMarker(modelIDs, BestPatterns(provider)),
	}
}
