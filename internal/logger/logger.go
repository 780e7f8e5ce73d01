package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// 中文说明：
// 全局日志门面。底层使用 logrus，文件输出走 lumberjack 轮转；
// 包内各处通过 Infof/Warnf/Errorf/Debugf 访问，避免层层传递 logger 实例。

var (
	mu  sync.RWMutex
	std = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})
	if lvl := strings.TrimSpace(os.Getenv("LOG_LEVEL")); lvl != "" {
		if parsed, err := logrus.ParseLevel(strings.ToLower(lvl)); err == nil {
			l.SetLevel(parsed)
		}
	}
	return l
}

// Options 控制日志初始化行为。
type Options struct {
	Level      string // debug/info/warn/error
	Format     string // text/json
	File       string // 为空则只输出到 stdout
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Configure 按配置重建全局 logger；File 非空时叠加 lumberjack 文件轮转。
func Configure(opts Options) error {
	l := logrus.New()

	level := strings.ToLower(strings.TrimSpace(opts.Level))
	if env := strings.TrimSpace(os.Getenv("LOG_LEVEL")); env != "" {
		level = strings.ToLower(env)
	}
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("无效日志级别 %q: %w", level, err)
	}
	l.SetLevel(parsed)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	if strings.TrimSpace(opts.File) != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxAge:     opts.MaxAgeDays,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		}
		l.SetOutput(&teeWriter{a: os.Stdout, b: rotator})
	} else {
		l.SetOutput(os.Stdout)
	}

	mu.Lock()
	std = l
	mu.Unlock()
	return nil
}

type teeWriter struct {
	a, b interface{ Write(p []byte) (int, error) }
}

func (w *teeWriter) Write(p []byte) (int, error) {
	n, err := w.a.Write(p)
	if _, berr := w.b.Write(p); berr != nil && err == nil {
		return n, berr
	}
	return n, err
}

func get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func Debugf(format string, args ...any) { get().Debugf(format, args...) }
func Infof(format string, args ...any)  { get().Infof(format, args...) }
func Warnf(format string, args ...any)  { get().Warnf(format, args...) }
func Errorf(format string, args ...any) { get().Errorf(format, args...) }

// LogLLMPayload 以 debug 级别记录发往模型的请求体，便于排查 prompt 问题。
// 正文可能很长，超出上限时截断。
func LogLLMPayload(model, payload string) {
	const limit = 4096
	if len(payload) > limit {
		payload = payload[:limit] + "...(truncated)"
	}
	get().Debugf("[AI] model=%s payload=%s", model, payload)
}
