package logger

import (
	"log"
	"strings"
	"sync/atomic"
)

// Level is a log severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var level atomic.Int32

func init() {
	level.Store(int32(LevelInfo))
}

// SetLevel sets the minimum level from its name. Unknown names fall back to INFO.
func SetLevel(name string) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		level.Store(int32(LevelDebug))
	case "", "INFO":
		level.Store(int32(LevelInfo))
	case "WARN", "WARNING":
		level.Store(int32(LevelWarn))
	case "ERROR":
		level.Store(int32(LevelError))
	default:
		log.Printf("[WARN] unknown log level %q, using INFO", name)
		level.Store(int32(LevelInfo))
	}
}

func enabled(l Level) bool {
	return Level(level.Load()) <= l
}

func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs and exits.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
