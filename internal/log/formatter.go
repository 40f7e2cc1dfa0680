package log

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// sourceKey carries the call site from the slog record to the formatter.
const sourceKey = "source"

// DefaultPattern is used when the configured pattern is empty.
const DefaultPattern = "%time [%level] %msg %field\n"

// DefaultTimeFormat is used when the configured time layout is empty.
const DefaultTimeFormat = "2006-01-02 15:04:05.000"

type formatter struct {
	pattern string
	time    string
}

// Format supports %time, %level, %msg, %field and %source.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	r := strings.NewReplacer(
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%msg", entry.Message,
		"%field", buildFields(entry),
		"%source", source(entry),
	)
	return []byte(r.Replace(f.pattern)), nil
}

func source(entry *logrus.Entry) string {
	if s, ok := entry.Data[sourceKey].(string); ok {
		return s
	}
	return "unknown"
}

// buildFields renders key=value pairs sorted by key.
func buildFields(entry *logrus.Entry) string {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == sourceKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		val, ok := entry.Data[k].(string)
		if !ok {
			val = fmt.Sprint(entry.Data[k])
		}
		if strings.ContainsAny(val, " \t\"") {
			val = fmt.Sprintf("%q", val)
		}
		fields = append(fields, k+"="+val)
	}
	return strings.Join(fields, " ")
}
