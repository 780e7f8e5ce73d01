package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mintpilot/internal/logger"
)

// ElizaClient 对接 eliza 风格的 agent 端点：POST {text, userId} -> {text}
// 或 [{text}]。System 提示词拼接到正文前，因为该协议没有独立的 system 槽位。
type ElizaClient struct {
	BaseURL      string
	AgentID      string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *ElizaClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	ctx = ensureCtx(ctx)
	timeout := c.ensureTimeout()
	maxRetries := normalizeRetries(c.MaxRetries)
	url := c.messageURL()

	text := payload.User
	if sys := strings.TrimSpace(payload.System); sys != "" {
		text = sys + "\n\n" + text
	}
	bodyBytes, _ := json.Marshal(map[string]any{
		"text":   text,
		"userId": "mintpilot",
	})
	logger.LogLLMPayload("eliza:"+c.AgentID, string(bodyBytes))

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
			break
		}
		if resp.StatusCode/100 == 2 {
			content, err := decodeElizaContent(resp)
			if err != nil {
				lastErr = err
				break
			}
			return content, nil
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, resp.Status)
		_ = resp.Body.Close()
		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			time.Sleep(parseRetryAfter(resp.Header.Get("Retry-After"), attempt))
			continue
		}
		break
	}
	return "", lastErr
}

func (c *ElizaClient) ensureTimeout() time.Duration {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c.Timeout
}

func (c *ElizaClient) messageURL() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	agent := strings.TrimSpace(c.AgentID)
	if agent == "" {
		agent = "agent"
	}
	if strings.Contains(url, "/message") {
		return url
	}
	return url + "/" + agent + "/message"
}

// decodeElizaContent 兼容单对象与数组两种响应形态。
func decodeElizaContent(resp *http.Response) (string, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	var single struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single.Text) != "" {
		return strings.TrimSpace(single.Text), nil
	}
	var many []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &many); err == nil {
		var b strings.Builder
		for _, m := range many {
			if strings.TrimSpace(m.Text) != "" {
				b.WriteString(m.Text)
			}
		}
		if out := strings.TrimSpace(b.String()); out != "" {
			return out, nil
		}
	}
	return "", fmt.Errorf("empty text content")
}

type ElizaModelProvider struct {
	id      string
	enabled bool
	client  interface {
		Call(ctx context.Context, payload ChatPayload) (string, error)
	}
}

func NewElizaModelProvider(id string, enabled bool, client interface {
	Call(context.Context, ChatPayload) (string, error)
}) *ElizaModelProvider {
	return &ElizaModelProvider{id: id, enabled: enabled, client: client}
}

func (p *ElizaModelProvider) ID() string        { return p.id }
func (p *ElizaModelProvider) Enabled() bool     { return p.enabled }
func (p *ElizaModelProvider) ExpectsJSON() bool { return false }
func (p *ElizaModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	return p.client.Call(ctx, payload)
}
