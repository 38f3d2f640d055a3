// Package logging 基于 log/slog 的结构化日志
//
// 服务层统一通过本包输出结构化日志；HTTP 处理器内的临时诊断
// 仍可使用标准库 log。
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config 日志配置
type Config struct {
	// Level 日志级别: debug / info / warn / error
	Level string `yaml:"level"`
	// Format 输出格式: json / text
	Format string `yaml:"format"`
}

// New 按配置创建 Logger
func New(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Default 返回 info 级别的 JSON Logger
func Default() *slog.Logger {
	return New(Config{Level: "info", Format: "json"})
}

// ============================================================================
// 常用属性
// ============================================================================

// WithUserID 用户 ID 属性
func WithUserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

// WithAdminID 运营账号 ID 属性
func WithAdminID(id string) slog.Attr {
	return slog.String("admin_id", id)
}

// WithFileID 文件 ID 属性
func WithFileID(id string) slog.Attr {
	return slog.String("file_id", id)
}

// WithError 错误属性，err 为 nil 时输出空串
func WithError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// WithDuration 耗时属性（毫秒）
func WithDuration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}
