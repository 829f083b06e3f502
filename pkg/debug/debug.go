// Package debug sets up aichat's slog logger and provides category-based
// debug output.
//
// Categories select WHAT is logged at DEBUG (AICHAT_DEBUG=providers,engine),
// the level selects HOW MUCH (AICHAT_LOG_LEVEL=TRACE adds raw vendor
// payloads). Both arrive through pkg/config.
//
//	debug.Log("providers", "request", "url", url)
//	debug.Payload("providers", "anthropic request body", body)
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
)

// LevelTrace is below slog.LevelDebug. At TRACE full vendor payloads are
// written.
const LevelTrace = slog.LevelDebug - 4

// Known lists the categories the code logs under. "all" enables every one.
var Known = []string{"auth", "config", "engine", "prompt", "providers", "session", "streaming", "transport"}

// Options configures Setup.
type Options struct {
	Level      string    // ERROR, WARN, INFO, DEBUG or TRACE
	Format     string    // "text" or "json"
	Categories string    // comma-separated
	Output     io.Writer // default: os.Stderr
}

type state struct {
	categories map[string]bool
	out        io.Writer
}

var current atomic.Pointer[state]

func init() {
	current.Store(&state{categories: map[string]bool{}, out: os.Stderr})
}

// Setup installs the default slog logger and the enabled categories.
// Unknown levels and categories are reported on the new logger.
func Setup(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	level, levelOK := ParseLevel(o.Level)
	hopts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	var h slog.Handler
	if strings.EqualFold(o.Format, "json") {
		h = slog.NewJSONHandler(out, hopts)
	} else {
		h = slog.NewTextHandler(out, hopts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)

	cats, unknown := parseCategories(o.Categories)
	current.Store(&state{categories: cats, out: out})

	if !levelOK {
		logger.Warn("unknown log level, using INFO", "configured_level", o.Level)
	}
	if len(unknown) > 0 {
		logger.Warn("unknown debug categories ignored", "categories", unknown, "known", Known)
	}
	return logger
}

// Enabled reports whether debug output is active for category.
func Enabled(category string) bool {
	c := current.Load().categories
	return c["all"] || c[category]
}

// Log emits a DEBUG record tagged with category when it is enabled.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a TRACE record tagged with category when it is enabled.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// Payload writes body verbatim, under a one-line label, so it can be
// copied into curl. It is written only at TRACE with category enabled.
func Payload(category, label, body string) {
	if !Enabled(category) || !slog.Default().Enabled(nil, LevelTrace) {
		return
	}
	fmt.Fprintf(current.Load().out, "--- %s ---\n%s\n", label, body)
}

// ParseLevel converts a level name. ok is false for unrecognized names,
// which map to INFO.
func ParseLevel(s string) (level slog.Level, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, true
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO", "":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func parseCategories(s string) (enabled map[string]bool, unknown []string) {
	enabled = make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.ToLower(strings.TrimSpace(cat))
		switch {
		case cat == "":
		case cat == "all" || slices.Contains(Known, cat):
			enabled[cat] = true
		default:
			unknown = append(unknown, cat)
		}
	}
	sort.Strings(unknown)
	return enabled, unknown
}
