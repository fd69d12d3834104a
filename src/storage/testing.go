package storage

import (
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger 带观察能力的Logger, 供各包测试断言日志
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger 记录所有级别的日志
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	return &TestLogger{
		Logger:   NewFromCore(core),
		observed: observed,
	}
}

// All 返回全部日志条目
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage 按消息子串过滤
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}
