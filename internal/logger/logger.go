package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	serviceName          = "bannerhub"
	defaultLogDirName    = "logs"
	defaultLogFilename   = "bannerhub.log"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 7
	defaultLogMaxAgeDays = 30
)

// Options 日志输出配置
type Options struct {
	Dir        string
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Level      string // 为空时 debug 模式用 debug，其余用 info
	Console    bool   // 非 debug 模式下同时输出 JSON 到 stdout（容器部署）
}

// L 全局结构化日志实例，Init 之前为 nil
var L *zap.Logger

var (
	fallbackOnce sync.Once
	fallbackLog  *zap.Logger
)

// Init 初始化全局日志并替换 zap 全局实例
func Init(mode string, options Options) *zap.Logger {
	L = New(mode, options)
	zap.ReplaceGlobals(L)
	return L
}

// New 按运行模式创建日志
// debug 模式只写控制台；其余模式写滚动文件，文件不可写时退回 stdout
func New(mode string, options Options) *zap.Logger {
	debug := strings.EqualFold(strings.TrimSpace(mode), "debug")
	level := resolveLevel(debug, options.Level)
	encCfg := encoderConfig()

	if debug {
		return build(zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level))
	}

	jsonEnc := zapcore.NewJSONEncoder(encCfg)
	fileSink, err := fileWriteSyncer(options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v, writing to stdout\n", err)
		return build(zapcore.NewCore(jsonEnc, zapcore.Lock(os.Stdout), level))
	}
	cores := []zapcore.Core{zapcore.NewCore(jsonEnc, fileSink, level)}
	if options.Console {
		cores = append(cores, zapcore.NewCore(jsonEnc.Clone(), zapcore.Lock(os.Stdout), level))
	}
	return build(zapcore.NewTee(cores...))
}

func build(core zapcore.Core) *zap.Logger {
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.Fields(zap.String("service", serviceName)))
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "event"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.MillisDurationEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func resolveLevel(debug bool, raw string) zap.AtomicLevel {
	if parsed, err := zapcore.ParseLevel(strings.TrimSpace(raw)); err == nil && strings.TrimSpace(raw) != "" {
		return zap.NewAtomicLevelAt(parsed)
	}
	if debug {
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zap.NewAtomicLevelAt(zap.InfoLevel)
}

// StdLogger 供命令行工具使用的标准库 logger
func StdLogger() *log.Logger {
	return zap.NewStdLog(base())
}

func base() *zap.Logger {
	if L != nil {
		return L
	}
	fallbackOnce.Do(func() {
		fallbackLog = build(zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), zap.NewAtomicLevelAt(zap.InfoLevel)))
	})
	return fallbackLog
}

// S 全局 SugaredLogger，未初始化时输出到控制台
func S() *zap.SugaredLogger {
	return base().Sugar()
}

// SW 带固定字段的 SugaredLogger
func SW(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return S()
	}
	return S().With(kv...)
}

// Sync 退出前刷新缓冲
func Sync() error {
	return base().Sync()
}

// Debugw debug 级别
func Debugw(event string, kv ...interface{}) {
	S().Debugw(event, kv...)
}

// Infow info 级别
func Infow(event string, kv ...interface{}) {
	S().Infow(event, kv...)
}

// Warnw warn 级别
func Warnw(event string, kv ...interface{}) {
	S().Warnw(event, kv...)
}

// Errorw error 级别
func Errorw(event string, kv ...interface{}) {
	S().Errorw(event, kv...)
}

func fileWriteSyncer(options Options) (zapcore.WriteSyncer, error) {
	path, err := resolveLogFilePath(options)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    positiveOr(options.MaxSizeMB, defaultLogMaxSizeMB),
		MaxBackups: positiveOr(options.MaxBackups, defaultLogMaxBackups),
		MaxAge:     positiveOr(options.MaxAgeDays, defaultLogMaxAgeDays),
		Compress:   options.Compress,
	}), nil
}

// resolveLogFilePath 创建目录并探测写权限
func resolveLogFilePath(options Options) (string, error) {
	dir := strings.TrimSpace(options.Dir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve workdir: %w", err)
		}
		dir = filepath.Join(wd, defaultLogDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	name := strings.TrimSpace(options.Filename)
	if name == "" {
		name = defaultLogFilename
	}
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	return path, file.Close()
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
