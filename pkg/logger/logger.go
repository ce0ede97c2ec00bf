package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string)
	Debugf(fmt string, args ...any)
	Info(msg string)
	Infof(fmt string, args ...any)
	Warn(msg string)
	Warnf(fmt string, args ...any)
	Error(msg string)
	Errorf(fmt string, args ...any)
	Named(component string) Logger
	GetLevel() string
}

// CustomLogger is a zerolog backed Logger. Every record carries the
// caller position in the src field and, for named loggers, the component.
type CustomLogger struct {
	logger *zerolog.Logger
}

const logLevelEnvName = "LOG_LEVEL"

var (
	logger *CustomLogger
	once   sync.Once
)

// GetLogger returns process wide logger. Level is read once from LOG_LEVEL
// environment variable, info by default.
func GetLogger() *CustomLogger {
	once.Do(func() {
		logger = New(os.Stdout, strings.ToLower(os.Getenv(logLevelEnvName)))
	})

	return logger
}

// New creates logger which writes console formatted records to out.
// Unknown level falls back to info.
func New(out io.Writer, logLevel string) *CustomLogger {
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	output.FormatTimestamp = func(i any) string {
		return fmt.Sprintf("ts=%s", i)
	}
	output.FormatLevel = func(i any) string {
		str, _ := i.(string)

		return fmt.Sprintf("lvl=%s", strings.ToUpper(str))
	}
	output.FormatMessage = func(i any) string {
		str, _ := i.(string)

		return fmt.Sprintf("msg=\"%s\"", editStringWithQuotes(str))
	}
	output.FormatFieldName = func(i any) string {
		return fmt.Sprintf("%s=", i)
	}
	output.FormatFieldValue = func(i any) string {
		return fmt.Sprintf("\"%s\"", i)
	}

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}

	zlog := zerolog.New(output).With().Timestamp().Logger().Level(level)

	return &CustomLogger{logger: &zlog}
}

// Nop returns logger that discards everything. Useful in tests.
func Nop() *CustomLogger {
	zlog := zerolog.Nop()

	return &CustomLogger{logger: &zlog}
}

// Named returns child logger tagged with component name.
func (l *CustomLogger) Named(component string) Logger {
	child := l.logger.With().Str("component", component).Logger()

	return &CustomLogger{logger: &child}
}

func (l *CustomLogger) Debug(msg string) {
	l.logger.Debug().Str("src", getSource()).Msg(msg)
}

func (l *CustomLogger) Debugf(fmt string, args ...any) {
	l.logger.Debug().Str("src", getSource()).Msgf(fmt, args...)
}

func (l *CustomLogger) Info(msg string) {
	l.logger.Info().Str("src", getSource()).Msg(msg)
}

func (l *CustomLogger) Infof(fmt string, args ...any) {
	l.logger.Info().Str("src", getSource()).Msgf(fmt, args...)
}

func (l *CustomLogger) Warn(msg string) {
	l.logger.Warn().Str("src", getSource()).Msg(msg)
}

func (l *CustomLogger) Warnf(fmt string, args ...any) {
	l.logger.Warn().Str("src", getSource()).Msgf(fmt, args...)
}

func (l *CustomLogger) Error(msg string) {
	l.logger.Error().Str("src", getSource()).Msg(msg)
}

func (l *CustomLogger) Errorf(fmt string, args ...any) {
	l.logger.Error().Str("src", getSource()).Msgf(fmt, args...)
}

func (l *CustomLogger) GetLevel() string {
	return l.logger.GetLevel().String()
}

func getSource() string {
	const stackDepth = 2

	_, file, line, ok := runtime.Caller(stackDepth)
	if !ok {
		return "unknown"
	}

	filePrefix := file[strings.LastIndex(file, "/")+1:]

	return filePrefix + ":" + strconv.Itoa(line)
}

func editStringWithQuotes(stringWithQuotes string) string {
	return strings.ReplaceAll(stringWithQuotes, "\"", "\\\"")
}
