package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	"go.uber.org/zap"
)

// makeEmitFn returns emit(key, value), which records a named result.
func makeEmitFn(report *Report) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("emit", 2, len(args))
		}
		key, err := toString(args[0])
		if err != nil {
			return object.Errorf("emit: key: %v", err)
		}
		report.Entries = append(report.Entries, Entry{Key: key, Value: args[1].Interface()})
		return object.Nil
	})
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	logger *zap.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
