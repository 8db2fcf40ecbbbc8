package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu       sync.RWMutex
	minLevel = LevelInfo
	std      = log.New(os.Stdout, "", log.LstdFlags)

	tags = map[Level]string{
		LevelDebug: color.New(color.FgCyan).Sprint("DEBUG"),
		LevelInfo:  color.New(color.FgGreen).Sprint("INFO "),
		LevelWarn:  color.New(color.FgYellow).Sprint("WARN "),
		LevelError: color.New(color.FgRed, color.Bold).Sprint("ERROR"),
	}
)

// * SetLevel drops every message below level
func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

// * SetOutput redirects log output, tests use it to capture lines
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

func logf(level Level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()

	if level < minLevel {
		return
	}
	std.Printf("%s %s", tags[level], fmt.Sprintf(format, args...))
}

func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }

func Info(format string, args ...any) { logf(LevelInfo, format, args...) }

func Warn(format string, args ...any) { logf(LevelWarn, format, args...) }

func Error(format string, args ...any) { logf(LevelError, format, args...) }
