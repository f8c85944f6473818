package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.Logger
	mu   sync.RWMutex
	once sync.Once
)

// InitLogger 初始化 Zap 日志库
// outputPath: 日志文件路径，例如 "logs/app.log"，为空时只输出到 stdout
// errorPath: 错误日志文件路径，例如 "logs/error.log"，为空时只输出到 stderr
// level: 日志级别 (debug, info, warn, error, dpanic, panic, fatal)
func InitLogger(outputPath, errorPath string, level string) {
	once.Do(func() {
		l, err := build(outputPath, errorPath, level)
		if err != nil {
			panic(fmt.Sprintf("Failed to build zap logger: %v", err))
		}
		SetLogger(l)
	})
}

func build(outputPath, errorPath, level string) (*zap.Logger, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = zap.InfoLevel // 默认 INFO 级别
		fmt.Fprintf(os.Stderr, "Failed to parse log level '%s', defaulting to info: %v\n", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.OutputPaths = withFile("stdout", outputPath)
	cfg.ErrorOutputPaths = withFile("stderr", errorPath)
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return cfg.Build()
}

// withFile 在标准输出之外追加日志文件，并确保其目录存在
func withFile(std, path string) []string {
	if path == "" || path == std {
		return []string{std}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log dir for %s: %v\n", path, err)
		return []string{std}
	}
	return []string{path, std}
}

// SetLogger 替换全局 logger，测试中可注入 zap.NewNop()
func SetLogger(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
}

// 返回全局logger
func GetLogger() *zap.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l == nil {
		// 在调用 InitLogger 之前使用时，退化为只写标准输出的 logger
		InitLogger("", "", "info")
		mu.RLock()
		l = log
		mu.RUnlock()
	}
	return l
}

// Sugar 返回 Zap 的 SugaredLogger，它提供了更灵活的 API (类似 fmt.Printf)
func Sugar() *zap.SugaredLogger {
	return GetLogger().Sugar()
}

// Named 返回带组件名的子 logger
func Named(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

// 刷新缓冲区,确保程序退出前使用
func Sync() {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		// stdout/stderr 的 Sync 在部分平台会返回 EINVAL，忽略即可
		_ = l.Sync()
	}
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}
