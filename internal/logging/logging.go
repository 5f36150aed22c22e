// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging writes line-oriented log output to the zone console.
//
// The log surface is fixed: warnings are prefixed "lx_init warn: " and
// errors "lx_init err: ". Guest administrators grep the console for these
// prefixes, so they must not change. Fatal errors additionally block on a
// signal wait before exiting nonzero; a fast nonzero exit from the zone's
// init is interpreted by the host as a reboot request, and a mis-configured
// zone would otherwise spin in a reboot loop.
package logging

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
)

// Level controls which messages are emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

const (
	prefixWarn = "lx_init warn: "
	prefixErr  = "lx_init err: "
)

// Config holds logger configuration.
type Config struct {
	Output io.Writer
	Level  Level

	// FatalHook, when set, replaces the pause-and-exit behavior of Fatal.
	// Only tests should set this.
	FatalHook func()
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Output: os.Stdout,
		Level:  LevelInfo,
	}
}

// Logger emits prefixed lines to the console.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	component string
	err       error
	fatalHook func()
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:        &sync.Mutex{},
		out:       out,
		level:     cfg.Level,
		fatalHook: cfg.FatalHook,
	}
}

var (
	defaultMu     sync.Mutex
	defaultLogger = New(DefaultConfig())
)

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// WithComponent returns a copy of the logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	c := *l
	c.component = name
	return &c
}

// WithError returns a copy of the logger that appends err to the next message.
func (l *Logger) WithError(err error) *Logger {
	c := *l
	c.err = err
	return &c
}

// Debug logs a debug message. Debug lines carry the warn prefix so they
// remain greppable on the console.
func (l *Logger) Debug(msg string, kv ...any) {
	if l.level > LevelDebug {
		return
	}
	l.emit(prefixWarn, msg, kv)
}

// Info logs an informational message. The console has no separate info
// channel, so these share the warn prefix.
func (l *Logger) Info(msg string, kv ...any) {
	if l.level > LevelInfo {
		return
	}
	l.emit(prefixWarn, msg, kv)
}

// Warn logs a warning. The boot continues.
func (l *Logger) Warn(msg string, kv ...any) {
	if l.level > LevelWarn {
		return
	}
	l.emit(prefixWarn, msg, kv)
}

// Error logs an error line without terminating. Almost all error paths
// should go through Fatal instead; this exists for the few places that
// report and then clean up.
func (l *Logger) Error(msg string, kv ...any) {
	l.emit(prefixErr, msg, kv)
}

// Fatal logs an error line, then pauses indefinitely before exiting with
// status 1.
func (l *Logger) Fatal(msg string, kv ...any) {
	l.emit(prefixErr, msg, kv)
	if l.fatalHook != nil {
		l.fatalHook()
		return
	}
	pause()
	os.Exit(1)
}

// pause blocks on a signal wait. Nothing in the zone sends these signals
// during boot, so in practice this never returns.
func pause() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
}

func (l *Logger) emit(prefix, msg string, kv []any) {
	var b strings.Builder
	b.WriteString(prefix)
	if l.component != "" {
		b.WriteString(l.component)
		b.WriteString(": ")
	}
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	if l.err != nil {
		fmt.Fprintf(&b, ": %v", l.err)
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, b.String())
}
