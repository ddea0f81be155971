// Package log provides structured logging for the librarian using zerolog.
//
// A single global Logger is configured once via Init and then specialized
// per-component with the With* helpers, so that every log line carries
// enough context (file name, store name, standing-order name, task id) to
// reconstruct what the catalog or replication engine was doing.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level represents a configured log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// RotatingFile describes a rotated log file sink backed by lumberjack, used
// when Config.Output is nil and RotateFile is set.
type RotatingFile struct {
	Path       string
	MaxSizeMB  int // default 100
	MaxBackups int // default 5
	MaxAgeDays int // default 28
	Compress   bool
}

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
	RotateFile *RotatingFile
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil && cfg.RotateFile != nil {
		output = rotatingWriter(cfg.RotateFile)
	}
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func rotatingWriter(rf *RotatingFile) io.Writer {
	maxSize := rf.MaxSizeMB
	if maxSize == 0 {
		maxSize = 100
	}
	maxBackups := rf.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}
	maxAge := rf.MaxAgeDays
	if maxAge == 0 {
		maxAge = 28
	}
	return &lumberjack.Logger{
		Filename:   rf.Path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   rf.Compress,
	}
}

// WithComponent creates a child logger tagged with a component name, e.g.
// "catalog", "search", "replication", "tasks".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithFile creates a child logger tagged with a cataloged file name.
func WithFile(name string) zerolog.Logger {
	return Logger.With().Str("file_name", name).Logger()
}

// WithStore creates a child logger tagged with a store name.
func WithStore(name string) zerolog.Logger {
	return Logger.With().Str("store", name).Logger()
}

// WithOrder creates a child logger tagged with a standing-order name.
func WithOrder(name string) zerolog.Logger {
	return Logger.With().Str("standing_order", name).Logger()
}

// WithTask creates a child logger tagged with a background task id.
func WithTask(id string) zerolog.Logger {
	return Logger.With().Str("task_id", id).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }
func Fatal(msg string) { Logger.Fatal().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}
