package provider

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// 中文说明：
// 模型提供方抽象。每个 provider 封装一种 HTTP 请求形态（openai 兼容 / anthropic
// messages / eliza 自由格式），对上层只暴露 Call(payload) -> text 一个能力，
// 新增 provider 不需要改动任何调用点。

// ChatPayload 单次补全请求的载荷。
type ChatPayload struct {
	System     string
	User       string
	MaxTokens  int
	ExpectJSON bool
}

// ModelProvider 统一的模型提供方接口。
type ModelProvider interface {
	ID() string
	Enabled() bool
	ExpectsJSON() bool
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

func ensureCtx(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func normalizeRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

// shouldRetry 仅对限流与服务端瞬时错误重试。
func shouldRetry(status int) bool {
	switch status {
	case 408, 429:
		return true
	}
	return status >= 500 && status < 600
}

// parseRetryAfter 解析 Retry-After（秒数形式），解析失败则按尝试次数指数退避。
func parseRetryAfter(header string, attempt int) time.Duration {
	header = strings.TrimSpace(header)
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 && secs <= 120 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if wait > 30*time.Second {
		wait = 30 * time.Second
	}
	return wait
}

// redactHeaders 脱敏包含凭据的请求头，仅保留末四位。
func redactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "auth") || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			if len(v) > 4 {
				out[k] = "****" + v[len(v)-4:]
			} else {
				out[k] = "****"
			}
			continue
		}
		out[k] = v
	}
	return out
}

func headerKeyExists(headers map[string]string, key string) bool {
	if len(headers) == 0 {
		return false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	for k := range headers {
		if strings.ToLower(strings.TrimSpace(k)) == key {
			return true
		}
	}
	return false
}
