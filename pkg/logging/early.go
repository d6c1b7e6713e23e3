package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EarlyLog reports startup failures before the configured logger exists. Lines are JSON with the
// same keys as the service logger. It never exits the process.
type EarlyLog struct {
	log *zap.SugaredLogger
}

func NewEarlyLog(serviceName string) *EarlyLog {
	return newEarlyLog(serviceName, zapcore.Lock(os.Stderr))
}

func newEarlyLog(serviceName string, out zapcore.WriteSyncer) *EarlyLog {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), out, zapcore.InfoLevel)
	return &EarlyLog{
		log: zap.New(core).Sugar().With(ServiceNameKey, serviceName, "phase", "startup"),
	}
}

func (l *EarlyLog) Error(msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, keysAndValues...)
	_ = l.log.Sync()
}
