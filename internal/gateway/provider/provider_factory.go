package provider

import (
	"fmt"
	"strings"
	"time"

	"mintpilot/internal/logger"
)

// 中文说明：
// 配置驱动的 Provider 工厂。构造期完成 provider 标签分派，调用点只见
// ModelProvider；不认识的标签在这里立即失败，不会发出任何网络请求。

// ErrUnsupportedProvider 配置了未知的 provider 标签。
var ErrUnsupportedProvider = fmt.Errorf("unsupported provider")

// ModelCfg 单个模型条目的配置。
type ModelCfg struct {
	ID, Provider, APIURL, APIKey, Model string
	Enabled                             bool
	MaxRetries                          int
	Headers                             map[string]string
}

// Build 根据配置构造单个 Provider。
func Build(m ModelCfg, timeout time.Duration) (ModelProvider, error) {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		base := strings.TrimSpace(m.Provider)
		if base == "" {
			base = "provider"
		}
		model := strings.TrimSpace(m.Model)
		if model != "" {
			id = fmt.Sprintf("%s:%s", base, model)
		} else {
			id = base
		}
		logger.Warnf("未配置 ai.id，已为 %q 生成 ID: %s", m.Provider, id)
	}

	switch strings.ToLower(strings.TrimSpace(m.Provider)) {
	case "openai":
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			MaxRetries:   m.MaxRetries,
			ExtraHeaders: m.Headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		return NewOpenAIModelProvider(id, m.Enabled, true, client), nil
	case "openrouter":
		base := strings.TrimSpace(m.APIURL)
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		headers := map[string]string{
			"HTTP-Referer": "https://mintpilot.local",
			"X-Title":      "mintpilot",
		}
		for k, v := range m.Headers {
			headers[k] = v
		}
		client := &OpenAIChatClient{
			BaseURL:      base,
			APIKey:       m.APIKey,
			Model:        m.Model,
			MaxRetries:   m.MaxRetries,
			ExtraHeaders: headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		return NewOpenAIModelProvider(id, m.Enabled, true, client), nil
	case "anthropic":
		client := &AnthropicClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			MaxRetries:   m.MaxRetries,
			ExtraHeaders: m.Headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		return NewAnthropicModelProvider(id, m.Enabled, false, client), nil
	case "eliza":
		client := &ElizaClient{
			BaseURL:      m.APIURL,
			AgentID:      m.Model,
			MaxRetries:   m.MaxRetries,
			ExtraHeaders: m.Headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		return NewElizaModelProvider(id, m.Enabled, client), nil
	case "custom":
		// 自建 openai 兼容端点，必须显式给出地址。
		if strings.TrimSpace(m.APIURL) == "" {
			return nil, fmt.Errorf("custom provider 需要 api_url")
		}
		client := &OpenAIChatClient{
			BaseURL:      m.APIURL,
			APIKey:       m.APIKey,
			Model:        m.Model,
			MaxRetries:   m.MaxRetries,
			ExtraHeaders: m.Headers,
		}
		if timeout > 0 {
			client.Timeout = timeout
		}
		return NewOpenAIModelProvider(id, m.Enabled, true, client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, m.Provider)
	}
}

// BuildProvidersFromConfig 批量构造启用的 Provider 列表；未知标签整体报错。
func BuildProvidersFromConfig(models []ModelCfg, timeout time.Duration) ([]ModelProvider, error) {
	out := make([]ModelProvider, 0, len(models))
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		p, err := Build(m, timeout)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
