package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// patternHandler is a slog.Handler that renders records through logrus with
// the pattern formatter.
type patternHandler struct {
	logger     *logrus.Logger
	level      slog.Leveler
	attrs      logrus.Fields
	group      string
	withSource bool
}

// NewPatternHandler returns a handler writing pattern-formatted lines to w.
func NewPatternHandler(w io.Writer, level slog.Leveler, pattern, timeFormat string) slog.Handler {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if timeFormat == "" {
		timeFormat = DefaultTimeFormat
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&formatter{pattern: pattern, time: timeFormat})
	// Filtering happens in Enabled.
	l.SetLevel(logrus.TraceLevel)

	return &patternHandler{
		logger:     l,
		level:      level,
		attrs:      logrus.Fields{},
		withSource: strings.Contains(pattern, "%source"),
	}
}

func (h *patternHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *patternHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(logrus.Fields, len(h.attrs)+r.NumAttrs()+1)
	for k, v := range h.attrs {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(fields, h.group, a)
		return true
	})
	if h.withSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fields[sourceKey] = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
	}

	h.logger.WithFields(fields).WithTime(r.Time).Log(toLogrusLevel(r.Level), r.Message)
	return nil
}

func (h *patternHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	for _, a := range attrs {
		addAttr(nh.attrs, h.group, a)
	}
	return nh
}

func (h *patternHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := h.clone()
	nh.group = joinKey(h.group, name)
	return nh
}

func (h *patternHandler) clone() *patternHandler {
	nh := *h
	nh.attrs = make(logrus.Fields, len(h.attrs))
	for k, v := range h.attrs {
		nh.attrs[k] = v
	}
	return &nh
}

// addAttr flattens groups into dotted keys.
func addAttr(fields logrus.Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = joinKey(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			addAttr(fields, p, ga)
		}
		return
	}
	fields[joinKey(prefix, a.Key)] = a.Value.Any()
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func toLogrusLevel(l slog.Level) logrus.Level {
	switch {
	case l >= slog.LevelError:
		return logrus.ErrorLevel
	case l >= slog.LevelWarn:
		return logrus.WarnLevel
	case l >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
