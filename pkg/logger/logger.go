package logger

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var InfoLogger *zap.Logger

type Config struct {
	Level       string
	Development bool
}

// New builds the process logger and installs it for the printf helper below.
// The service field is attached here, once.
func New(conf Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if conf.Development {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if conf.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(conf.Level))
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", conf.Level)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := zcfg.Build(zap.Fields(zap.String("service", serviceName)))
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}
	InfoLogger = l
	return l, nil
}

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

func Error(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	InfoLogger.Error(fmt.Sprintf(format, args...))
}
