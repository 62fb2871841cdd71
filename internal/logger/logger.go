package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"tg-vaultbot/internal/config"
)

// Level is a logging severity, ordered from most to least verbose.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelFatal:   "FATAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel maps a configured level name onto a Level, defaulting to INFO.
func ParseLevel(name string) Level {
	for level, levelName := range levelNames {
		if strings.EqualFold(levelName, name) {
			return level
		}
	}
	return LevelInfo
}

var minLevel atomic.Int32

func init() {
	minLevel.Store(int32(LevelInfo))
}

// SetLevel changes the minimum level that gets written.
func SetLevel(level Level) {
	minLevel.Store(int32(level))
}

// Enabled reports whether messages at level are written.
func Enabled(level Level) bool {
	return int32(level) >= minLevel.Load()
}

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// createMultiWriter creates a writer that outputs to both stdout and log file
func createMultiWriter(rotatingLogger io.Writer) io.Writer {
	return io.MultiWriter(os.Stdout, rotatingLogger)
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "tg-vaultbot")
	rotatingLogger := createRotatingLogger(logFilePath, cfg)

	log.SetOutput(createMultiWriter(rotatingLogger))
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	SetLevel(ParseLevel(cfg.Logger.Level))

	log.Printf("Logging initialized: writing to %s (level %s)", logFilePath, ParseLevel(cfg.Logger.Level))
	return nil
}

// calldepth skips output(), the exported helper and log.Output itself so Lshortfile points at the caller.
const calldepth = 3

func output(level Level, msg string) {
	if !Enabled(level) {
		return
	}
	_ = log.Output(calldepth, fmt.Sprintf("[%s] %s", level, msg))
}

func Debugf(format string, args ...any)   { output(LevelDebug, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)    { output(LevelInfo, fmt.Sprintf(format, args...)) }
func Warningf(format string, args ...any) { output(LevelWarning, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any)   { output(LevelError, fmt.Sprintf(format, args...)) }

func Debug(args ...any)   { output(LevelDebug, fmt.Sprint(args...)) }
func Info(args ...any)    { output(LevelInfo, fmt.Sprint(args...)) }
func Warning(args ...any) { output(LevelWarning, fmt.Sprint(args...)) }
func Error(args ...any)   { output(LevelError, fmt.Sprint(args...)) }

// Fatalf logs regardless of level and exits the process.
func Fatalf(format string, args ...any) {
	_ = log.Output(2, fmt.Sprintf("[%s] %s", LevelFatal, fmt.Sprintf(format, args...)))
	os.Exit(1)
}

// TelegoLogger forwards telego's client logs into this package.
type TelegoLogger struct{}

func (TelegoLogger) Debugf(format string, args ...any) {
	Debugf("telego: "+format, args...)
}

func (TelegoLogger) Errorf(format string, args ...any) {
	Errorf("telego: "+format, args...)
}
