package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single lines with a stable key
// order so logs stay grep-able in both kv and json output.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

// Enabled reports whether the handler allows processing the provided level.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle formats the slog.Record and writes it using the configured writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.collectAttr(fields, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collectAttr(fields, a, h.groups)
		return true
	})

	addContextFields(ctx, fields)

	if event, ok := fields["event"].(string); !ok || event == "" {
		if r.Message != "" {
			fields["event"] = r.Message
		} else {
			fields["event"] = "unknown"
		}
	}

	var line []byte
	if h.cfg.format == formatJSON {
		line = renderJSON(fields, h.cfg.keyOrder)
	} else {
		line = renderKV(fields, h.cfg.keyOrder)
	}
	line = append(line, '\n')
	return h.cfg.writer.Write(line)
}

// WithAttrs returns a handler that includes the provided attributes on every record.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that nests subsequent attributes under the named group.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collectAttr(fields map[string]any, a slog.Attr, groups []string) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.collectAttr(fields, ga, sub)
		}
		return
	}
	if a.Key == "" {
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	fields[key] = normalizeValue(key, a.Value)
}

func normalizeValue(key string, v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).Milliseconds()
	case slog.KindTime:
		return v.Time().UTC().Format(timeFormatMillis)
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	default:
		if err, ok := v.Any().(error); ok && err != nil {
			return err.Error()
		}
		return v.Any()
	}
}

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		if _, seen := fields["rid"]; !seen {
			fields["rid"] = rid
		}
	}
	if userID := UserIDFrom(ctx); userID != "" {
		if _, seen := fields["user_id"]; !seen {
			fields["user_id"] = userID
		}
	}
	if route := RouteFrom(ctx); route != "" {
		if _, seen := fields["route"]; !seen {
			fields["route"] = route
		}
	}
}

// orderedKeys returns the configured keys first, then the remainder sorted.
func orderedKeys(fields map[string]any, keyOrder []string) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, k := range keyOrder {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
			seen[k] = struct{}{}
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func renderKV(fields map[string]any, keyOrder []string) []byte {
	var b strings.Builder
	for i, k := range orderedKeys(fields, keyOrder) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(fields[k]))
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	switch val := v.(type) {
	case string:
		if val == "" || strings.ContainsAny(val, " \t\n\"=") {
			return strconv.Quote(val)
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func renderJSON(fields map[string]any, keyOrder []string) []byte {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range orderedKeys(fields, keyOrder) {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		b.Write(keyJSON)
		b.WriteByte(':')
		valJSON, err := json.Marshal(fields[k])
		if err != nil {
			valJSON, _ = json.Marshal(fmt.Sprintf("%v", fields[k]))
		}
		b.Write(valJSON)
	}
	b.WriteByte('}')
	return []byte(b.String())
}
