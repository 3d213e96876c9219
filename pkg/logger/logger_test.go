package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(buffer *bytes.Buffer) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buffer), // 写入 buffer 而不是控制台
		zap.InfoLevel,
	)
	Log = zap.New(core)
}

func TestLogger_Info_WithTraceID(t *testing.T) {
	buffer := &bytes.Buffer{}
	newBufferLogger(buffer)

	traceVal := "trace-webhook-001"
	ctx := context.WithValue(context.Background(), TraceIdKey, traceVal)

	Info(ctx, "入账日志", zap.String("account", "acc-1"), zap.Float64("amount", 50.5))

	var logEntry map[string]interface{}
	err := json.Unmarshal(buffer.Bytes(), &logEntry)
	assert.NoError(t, err, "日志输出必须是合法的 JSON")

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "入账日志", logEntry["msg"])
	assert.Equal(t, "acc-1", logEntry["account"])
	assert.Equal(t, 50.5, logEntry["amount"])
	// 核心验证：TraceID 被自动注入
	assert.Equal(t, traceVal, logEntry["trace_id"])
}

func TestLogger_Error_NoTraceID(t *testing.T) {
	buffer := &bytes.Buffer{}
	newBufferLogger(buffer)

	Error(context.Background(), "数据库连接失败", zap.String("db", "mysql"))

	var logEntry map[string]interface{}
	_ = json.Unmarshal(buffer.Bytes(), &logEntry)

	_, exists := logEntry["trace_id"]
	assert.False(t, exists, "没有 TraceID 的 Context 不应该输出 trace_id 字段")
	assert.Equal(t, "error", logEntry["level"])
}
