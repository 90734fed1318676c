package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements Logger on top of sirupsen/logrus, for applications
// that already route their output through logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

var _ Logger = (*LogrusLogger)(nil)

// NewLogrus creates a logrus-backed Logger with the given minimum level.
func NewLogrus(level Level) Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(toLogrusLevel(level))

	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.withFields(keysAndValues).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.withFields(keysAndValues).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.withFields(keysAndValues).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.withFields(keysAndValues).Error(msg)
}

func (l *LogrusLogger) Fatal(msg string, keysAndValues ...any) {
	// logrus Fatal calls os.Exit(1) after logging.
	l.withFields(keysAndValues).Fatal(msg)
}

func (l *LogrusLogger) With(keyValues ...any) Logger {
	return &LogrusLogger{entry: l.withFields(keyValues)}
}

func (l *LogrusLogger) Level() Level {
	switch l.entry.Logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.FatalLevel, logrus.PanicLevel:
		return FatalLevel
	default:
		return ErrorLevel
	}
}

func (l *LogrusLogger) SetLevel(level Level) {
	l.entry.Logger.SetLevel(toLogrusLevel(level))
}

// withFields converts alternating key-value pairs into logrus fields.
// A dangling key is logged with a placeholder value rather than dropped.
func (l *LogrusLogger) withFields(keyValues []any) *logrus.Entry {
	if len(keyValues) == 0 {
		return l.entry
	}

	fields := make(logrus.Fields, (len(keyValues)+1)/2)
	for i := 0; i < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprint(keyValues[i])
		}

		if i+1 < len(keyValues) {
			fields[key] = keyValues[i+1]
		} else {
			fields[key] = "(MISSING)"
		}
	}

	return l.entry.WithFields(fields)
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.ErrorLevel
	}
}
