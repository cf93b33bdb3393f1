// Copyright (C) 2025 Lanternworks (oss@lanternworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging configures structured logging for ragline binaries.
//
// Built on slog with two extensions: fan-out to multiple destinations
// (stderr plus an optional JSON log file), and an exporter hook for
// shipping entries to external sinks.
//
// The server writes JSON to stdout for log collectors; the CLI writes
// human-readable text to stderr. Both go through Setup:
//
//	logger := logging.Setup(logging.Config{Service: "ragline", JSON: true})
//	defer logger.Close()
//
// Setup also installs the logger as the slog default, so package code
// logs through plain slog calls without carrying a logger around.
//
// This package never redacts; callers must keep secrets and raw user
// content out of log attributes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

// ParseLevel maps a level name to a slog.Level. Unknown names and the
// empty string mean Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures Setup. The zero value logs Info+ text to stderr.
type Config struct {
	// Level is the minimum level; lower records are discarded.
	Level slog.Level

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches the primary stream to JSON. File output is always
	// JSON regardless.
	JSON bool

	// LogDir enables file output alongside the primary stream. The file
	// is named {service}_{date}.log; a leading ~ expands to the home
	// directory.
	LogDir string

	// Quiet drops the primary stream, leaving only file and exporter
	// output. For daemons whose stderr nobody watches.
	Quiet bool

	// Exporter, when set, additionally receives every record at or
	// above Level. Export failures are dropped, never propagated.
	Exporter Exporter
}

// =============================================================================
// Exporter Hook
// =============================================================================

// Entry is one record handed to an Exporter.
type Entry struct {
	Timestamp time.Time
	Level     slog.Level
	Message   string
	Service   string
	Attrs     map[string]any
}

// Exporter ships log entries to an external sink. Implementations must
// not block in Export; buffer internally and batch.
type Exporter interface {
	Export(ctx context.Context, entry Entry) error

	// Flush sends anything buffered; called on shutdown before Close.
	Flush(ctx context.Context) error

	Close() error
}

// =============================================================================
// Logger
// =============================================================================

// Logger owns the configured destinations. Safe for concurrent use.
type Logger struct {
	slog     *slog.Logger
	service  string
	level    slog.Level
	file     *os.File
	exporter Exporter
	mu       sync.Mutex
}

// Setup builds a Logger from config and installs it as the slog
// default. Call Close on shutdown to flush the file and exporter.
func Setup(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{
		service:  config.Service,
		level:    config.Level,
		exporter: config.Exporter,
	}

	if config.LogDir != "" {
		if file := openLogFile(config.LogDir, config.Service); file != nil {
			logger.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &fanoutHandler{handlers: handlers}
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}
	if config.Exporter != nil {
		handler = &exportHandler{next: handler, logger: logger}
	}

	logger.slog = slog.New(handler)
	slog.SetDefault(logger.slog)
	return logger
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Close flushes the exporter and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
	}
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// openLogFile creates the log directory and opens today's file for
// appending. Failures are swallowed: a broken log dir must not take the
// primary stream down with it.
func openLogFile(dir, service string) *os.File {
	dir = expandHome(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil
	}
	if service == "" {
		service = "ragline"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return file
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// =============================================================================
// Handlers
// =============================================================================

// fanoutHandler delivers each record to every enabled handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}

// exportHandler tees records to the logger's exporter after the normal
// destinations. Export runs async so a slow sink cannot stall logging.
type exportHandler struct {
	next   slog.Handler
	logger *Logger
}

func (h *exportHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *exportHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	attrs := make(map[string]any, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	entry := Entry{
		Timestamp: r.Time,
		Level:     r.Level,
		Message:   r.Message,
		Service:   h.logger.service,
		Attrs:     attrs,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.logger.exporter.Export(ctx, entry)
	}()
	return err
}

func (h *exportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &exportHandler{next: h.next.WithAttrs(attrs), logger: h.logger}
}

func (h *exportHandler) WithGroup(name string) slog.Handler {
	return &exportHandler{next: h.next.WithGroup(name), logger: h.logger}
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// NopExporter discards everything.
type NopExporter struct{}

func (NopExporter) Export(context.Context, Entry) error { return nil }
func (NopExporter) Flush(context.Context) error         { return nil }
func (NopExporter) Close() error                        { return nil }

// BufferedExporter collects entries in memory, for tests.
type BufferedExporter struct {
	mu      sync.Mutex
	entries []Entry
}

func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{}
}

func (e *BufferedExporter) Export(_ context.Context, entry Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

func (e *BufferedExporter) Flush(context.Context) error { return nil }
func (e *BufferedExporter) Close() error                { return nil }

// Entries returns a copy of everything collected so far.
func (e *BufferedExporter) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Entry, len(e.entries))
	copy(out, e.entries)
	return out
}

// WriterExporter writes one formatted line per entry to w.
type WriterExporter struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{w: w}
}

func (e *WriterExporter) Export(_ context.Context, entry Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.w, "[%s] %s: %s %v\n",
		entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message, entry.Attrs)
	return err
}

func (e *WriterExporter) Flush(context.Context) error { return nil }
func (e *WriterExporter) Close() error                { return nil }

var (
	_ Exporter = NopExporter{}
	_ Exporter = (*BufferedExporter)(nil)
	_ Exporter = (*WriterExporter)(nil)
)
