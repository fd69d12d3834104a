package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器, 底层为zap, 同时写文件与控制台
type Logger struct {
	zap         *zap.Logger
	filename    string
	file        *os.File      // 日志文件句柄
	level       zap.AtomicLevel
	mu          sync.Mutex    // 保护file与subscribers
	subscribers []chan string // 订阅者通道列表
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//	verbose: 是否输出DEBUG级别
func NewLogger(filename string, verbose bool) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	l := &Logger{filename: filename, level: level}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewNopLogger 不输出任何内容, 供库调用方与测试使用
func NewNopLogger() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// NewFromCore 使用给定core构建Logger
func NewFromCore(core zapcore.Core) *Logger {
	l := &Logger{level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
	l.zap = zap.New(core, zap.Hooks(l.publish))
	return l
}

func (l *Logger) open() error {
	if dir := filepath.Dir(l.filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(l.filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEnc := zap.NewDevelopmentEncoderConfig()
	consoleEnc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(file), l.level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEnc), zapcore.Lock(os.Stderr), l.level),
	)

	l.file = file
	l.zap = zap.New(core, zap.Hooks(l.publish))
	return nil
}

// Zap 返回底层zap logger, 用于结构化字段
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// With 附加结构化字段, 订阅者与文件共享
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		zap:      l.zap.With(fields...),
		filename: l.filename,
		level:    l.level,
	}
}

// Close 同步并关闭日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.zap.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 切换到新的日志文件
func (l *Logger) Reopen(filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_ = l.zap.Sync()
		_ = l.file.Close()
	}
	l.filename = filename
	return l.open()
}

// Log 按级别记录日志
func (l *Logger) Log(level LogLevel, message string, fields ...zap.Field) {
	switch level {
	case DEBUG:
		l.zap.Debug(message, fields...)
	case INFO:
		l.zap.Info(message, fields...)
	case WARNING:
		l.zap.Warn(message, fields...)
	case ERROR:
		l.zap.Error(message, fields...)
	case FATAL:
		// 不退出进程, 由调用方决定
		l.zap.Error(message, append(fields, zap.String("severity", FATAL.String()))...)
	}
}

// publish 通知所有订阅者, 通道已满则跳过
func (l *Logger) publish(entry zapcore.Entry) error {
	msg := fmt.Sprintf("[%s] %s: %s",
		entry.Time.Format("2006-01-02 15:04:05"),
		strings.ToUpper(entry.Level.String()),
		entry.Message)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (l *Logger) Unsubscribe(sub <-chan string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ch := range l.subscribers {
		if ch == sub {
			close(ch)
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}

// CheckRotate 文件超过maxSize时轮转
func (l *Logger) CheckRotate(maxSize string) error {
	l.mu.Lock()
	if l.file == nil {
		l.mu.Unlock()
		return nil
	}
	info, err := l.file.Stat()
	l.mu.Unlock()
	if err != nil {
		return err
	}

	limit, err := eval(maxSize)
	if err != nil {
		return err
	}
	if limit > 0 && info.Size() > limit {
		return l.rotateLog()
	}
	return nil
}

func (l *Logger) rotateLog() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		_ = l.zap.Sync()
		_ = l.file.Close()
		ext := filepath.Ext(l.filename)
		base := strings.TrimSuffix(l.filename, ext)
		rotated := fmt.Sprintf("%s.%s%s", base, time.Now().Format("20060102150405"), ext)
		if err := os.Rename(l.filename, rotated); err != nil {
			return err
		}
	}
	return l.open()
}

// String 实现LogLevel的String方法
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// eval 解析 "10 * 1024 * 1024" 形式的大小
func eval(expr string) (int64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, nil
	}
	var result int64 = 1
	for _, part := range strings.Split(expr, "*") {
		num, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid log size %q: %w", expr, err)
		}
		result *= num
	}
	return result, nil
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string, fields ...zap.Field)   { l.Log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)    { l.Log(INFO, msg, fields...) }
func (l *Logger) Warning(msg string, fields ...zap.Field) { l.Log(WARNING, msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field)   { l.Log(ERROR, msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...zap.Field)   { l.Log(FATAL, msg, fields...) }
