// Package privacylog keeps key material and provider credentials out of logs.
package privacylog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	sensitiveKeyParts = []string{
		"mnemonic", "seed", "secret", "private", "passphrase",
		"password", "token", "authorization", "access_key",
	}
	urlKeySuffixes = []string{"url", "endpoint", "uri"}
	// Query parameters RPC providers use to carry API keys.
	sensitiveQueryParams = []string{"api-key", "api_key", "apikey", "key", "token", "access_token"}
)

type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAttrs(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lowerKey := strings.ToLower(key)
	switch {
	case isSensitiveKey(lowerKey):
		return slog.String(key, redactedValue)
	case isURLKey(lowerKey) && attr.Value.Kind() == slog.KindString:
		return slog.String(key, RedactURL(attr.Value.String()))
	case attr.Value.Kind() == slog.KindGroup:
		return slog.Attr{Key: key, Value: slog.GroupValue(sanitizeAttrs(attr.Value.Group())...)}
	}
	return attr
}

func SanitizeArgs(args ...any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			out = append(out, args[i])
			continue
		}
		value := args[i+1]
		i++
		lowerKey := strings.ToLower(strings.TrimSpace(key))
		switch {
		case isSensitiveKey(lowerKey):
			out = append(out, key, redactedValue)
		case isURLKey(lowerKey):
			out = append(out, key, RedactURL(fmt.Sprint(value)))
		default:
			out = append(out, key, value)
		}
	}
	return out
}

// RedactURL drops userinfo and masks API-key query parameters. Values that
// do not parse as URLs are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	if u.User != nil {
		u.User = url.User(redactedValue)
	}
	q := u.Query()
	changed := false
	for name := range q {
		if isSensitiveParam(strings.ToLower(name)) {
			q.Set(name, redactedValue)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func sanitizeAttrs(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, SanitizeAttr(attr))
	}
	return out
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func isURLKey(key string) bool {
	for _, suffix := range urlKeySuffixes {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

func isSensitiveParam(name string) bool {
	for _, p := range sensitiveQueryParams {
		if name == p {
			return true
		}
	}
	return false
}
