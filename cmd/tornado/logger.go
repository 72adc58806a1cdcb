package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/g3/tornado/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// runtimeLogger fans log events to a styled console sink and an optional rotating file sink.
type runtimeLogger struct {
	level          charmLog.Level
	appName        string
	console        io.Writer
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	file           io.WriteCloser
	fileSink       *charmLog.Logger
	filePath       string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, cfg config.LoggingConfig, defaultFilePath string) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if stderr == nil {
		stderr = io.Discard
	}

	logger := &runtimeLogger{
		level:          level,
		appName:        appName,
		console:        stderr,
		consoleEnabled: true,
		consoleSink: charmLog.NewWithOptions(stderr, charmLog.Options{
			Level:           level,
			Prefix:          appName,
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmLog.TextFormatter,
		}),
	}
	if !cfg.File.Enabled {
		return logger, nil
	}

	path := strings.TrimSpace(cfg.File.Path)
	if path == "" {
		path = defaultFilePath
	}
	if path == "" {
		return nil, fmt.Errorf("logging.file.path is required when file logging is enabled")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logger.file = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	}
	// The file stays logfmt so it can be grepped and shipped.
	logger.fileSink = charmLog.NewWithOptions(logger.file, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.filePath = path
	return logger, nil
}

// FilePath returns the active log file path, if any.
func (l *runtimeLogger) FilePath() string {
	if l == nil {
		return ""
	}
	return l.filePath
}

// Close closes the optional file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// Component returns a single logger for adapters that take a *charmLog.Logger.
// With only the console active it is a prefixed console logger; once a file
// sink is involved both outputs share one logfmt stream.
func (l *runtimeLogger) Component(name string) *charmLog.Logger {
	if l == nil {
		return charmLog.New(io.Discard)
	}
	prefix := l.appName
	if name != "" {
		prefix += "/" + name
	}
	var outputs []io.Writer
	if l.consoleEnabled {
		outputs = append(outputs, l.console)
	}
	if l.file != nil {
		outputs = append(outputs, l.file)
	}
	switch {
	case len(outputs) == 0:
		return charmLog.New(io.Discard)
	case l.file == nil:
		return l.consoleSink.WithPrefix(prefix)
	}
	return charmLog.NewWithOptions(io.MultiWriter(outputs...), charmLog.Options{
		Level:           l.level,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
}

func (l *runtimeLogger) sinks() []*charmLog.Logger {
	if l == nil {
		return nil
	}
	out := make([]*charmLog.Logger, 0, 2)
	if l.consoleEnabled && l.consoleSink != nil {
		out = append(out, l.consoleSink)
	}
	if l.fileSink != nil {
		out = append(out, l.fileSink)
	}
	return out
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Debug(msg, keyvals...)
	}
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Info(msg, keyvals...)
	}
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Warn(msg, keyvals...)
	}
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	for _, sink := range l.sinks() {
		sink.Error(msg, keyvals...)
	}
}
