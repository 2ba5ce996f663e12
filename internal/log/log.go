package log

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	panicDir    atomic.Pointer[string]
)

// Setup routes the default slog logger to a rotating JSON log file. Only
// the first call has an effect.
func Setup(logFile string, debug bool) {
	initOnce.Do(func() {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
		}

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		})
		slog.SetDefault(slog.New(handler))

		dir := filepath.Dir(logFile)
		panicDir.Store(&dir)
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}

// RecoverPanic is deferred at the top of goroutines. A panic is written with
// its stack trace to a file next to the log, then cleanup runs.
func RecoverPanic(name string, cleanup func()) {
	r := recover()
	if r == nil {
		return
	}

	dir := "."
	if d := panicDir.Load(); d != nil {
		dir = *d
	}
	now := time.Now()
	filename := filepath.Join(dir, fmt.Sprintf("dgrid-panic-%s-%s.log", name, now.Format("20060102-150405")))

	slog.Error("Recovered from panic", "name", name, "panic", r, "file", filename)
	if err := writePanic(filename, name, r, now); err != nil {
		slog.Error("Failed to write panic log", "error", err)
	}
	if cleanup != nil {
		cleanup()
	}
}

func writePanic(filename, name string, r any, at time.Time) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "Panic in %s: %v\n\n", name, r)
	fmt.Fprintf(f, "Time: %s\n\n", at.Format(time.RFC3339))
	fmt.Fprintf(f, "Stack Trace:\n%s\n", debug.Stack())
	return nil
}
