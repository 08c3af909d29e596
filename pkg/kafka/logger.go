package kafka

import (
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/downfa11-org/cursus-quickstart/util"
)

type logger struct{}

// NewLogger routes franz-go client logs through util at the current level.
func NewLogger() kgo.Logger {
	return logger{}
}

func (logger) Level() kgo.LogLevel {
	switch util.Level() {
	case util.LogLevelDebug:
		return kgo.LogLevelDebug
	case util.LogLevelInfo:
		return kgo.LogLevelInfo
	case util.LogLevelWarn:
		return kgo.LogLevelWarn
	default:
		return kgo.LogLevelError
	}
}

func (logger) Log(level kgo.LogLevel, msg string, keyvals ...interface{}) {
	line := formatKeyvals(msg, keyvals)
	switch level {
	case kgo.LogLevelError:
		util.Error("[kgo] %s", line)
	case kgo.LogLevelWarn:
		util.Warn("[kgo] %s", line)
	case kgo.LogLevelInfo:
		util.Info("[kgo] %s", line)
	case kgo.LogLevelDebug:
		util.Debug("[kgo] %s", line)
	}
}

func formatKeyvals(msg string, keyvals []interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keyvals); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, "%v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, "%v=?", keyvals[i])
		}
	}
	return b.String()
}
