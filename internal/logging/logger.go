// Package logging provides config-driven categorized logging for algometa.
// Every subsystem logs through a named child of one zap root logger; a
// category switched off in the config gets a no-op logger.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Startup, config loading
	CategoryManual    Category = "manual"    // Manual tokenizing and table parsing
	CategoryStore     Category = "store"     // Record persistence
	CategoryReconcile Category = "reconcile" // Merging manual facts into records
	CategoryAudit     Category = "audit"     // Manual vs store audit
	CategoryWatch     Category = "watch"     // File watching
)

// Categories lists every known category.
func Categories() []Category {
	return []Category{CategoryBoot, CategoryManual, CategoryStore, CategoryReconcile, CategoryAudit, CategoryWatch}
}

// Options mirrors the logging section of the config file.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json or console
	Categories map[string]bool // absent categories are enabled
	Verbose    bool            // forces debug level
}

// Loggers hands out one named logger per category.
type Loggers struct {
	root    *zap.Logger
	enabled map[string]bool

	mu    sync.Mutex
	cache map[Category]*zap.Logger
}

// New builds the root logger from zap's production config, the way the
// CLI always has, and wraps it in a category registry.
func New(opts Options) (*Loggers, error) {
	cfg := zap.NewProductionConfig()
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	switch strings.ToLower(opts.Format) {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	root, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return Wrap(root, opts.Categories), nil
}

// Wrap uses an existing zap logger as the root.
func Wrap(root *zap.Logger, categories map[string]bool) *Loggers {
	enabled := make(map[string]bool, len(categories))
	for k, v := range categories {
		enabled[strings.ToLower(k)] = v
	}
	return &Loggers{root: root, enabled: enabled, cache: make(map[Category]*zap.Logger)}
}

// Nop returns a registry whose loggers discard everything.
func Nop() *Loggers {
	return Wrap(zap.NewNop(), nil)
}

// IsCategoryEnabled returns whether a specific category is enabled
func (l *Loggers) IsCategoryEnabled(category Category) bool {
	enabled, exists := l.enabled[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) the logger for the given category.
func (l *Loggers) Get(category Category) *zap.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lg, ok := l.cache[category]; ok {
		return lg
	}
	lg := zap.NewNop()
	if l.IsCategoryEnabled(category) {
		lg = l.root.Named(string(category))
	}
	l.cache[category] = lg
	return lg
}

// With returns a registry whose loggers all carry fields, e.g. a run id.
func (l *Loggers) With(fields ...zap.Field) *Loggers {
	return &Loggers{
		root:    l.root.With(fields...),
		enabled: l.enabled,
		cache:   make(map[Category]*zap.Logger),
	}
}

// Root returns the uncategorized logger.
func (l *Loggers) Root() *zap.Logger { return l.root }

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func (l *Loggers) Sync() {
	_ = l.root.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// ValidLevel reports whether s names a log level.
func ValidLevel(s string) bool {
	_, err := parseLevel(s)
	return err == nil
}
