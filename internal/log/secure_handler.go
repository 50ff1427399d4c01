package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// sensitiveKeys are attribute and query parameter names whose values are
// always masked. Relay requests carry headers and target URLs supplied by
// the user, so both header names and common credential parameters appear.
var sensitiveKeys = map[string]bool{
	"authorization": true, "proxy-authorization": true,
	"cookie": true, "set-cookie": true,
	"x-api-key": true, "x-auth-token": true,
	"password": true, "passwd": true, "secret": true, "token": true,
	"api_key": true, "apikey": true, "api-key": true,
	"access_token": true, "refresh_token": true, "id_token": true,
	"client_secret": true, "private_key": true,
	"session": true, "session_id": true, "sessionid": true,
	"sid": true, "jsessionid": true, "phpsessid": true,
	"sig": true, "signature": true,
	"credential": true, "credentials": true, "auth": true,
}

// sensitiveKeywords mask any key that contains them. The bare word "key"
// only applies to query parameters (see isSensitiveParam).
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitivePatterns match values that are secrets regardless of their key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// MaskValue replaces sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler and scrubs secrets from every
// attribute before passing the record on.
//
// Design decision: a handler wrapper works with any underlying handler
// (text, JSON) and with libraries that accept a *slog.Logger, such as
// tornago.
type SecureHandler struct {
	// handler receives the scrubbed records.
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler means slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle scrubs the record's attributes and passes it on.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a handler with the scrubbed attributes added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr scrubs one attribute, recursing into groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch {
	case a.Value.Kind() == slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			out = append(out, h.sanitizeAttr(ga))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case isSensitiveKey(a.Key):
		return slog.String(a.Key, MaskValue)
	case a.Value.Kind() != slog.KindString:
		return a
	}

	v := a.Value.String()
	if isSensitiveValue(v) {
		return slog.String(a.Key, MaskValue)
	}
	if scrubbed, changed := ScrubURL(v); changed {
		return slog.String(a.Key, scrubbed)
	}
	return a
}

// isSensitiveKey reports whether an attribute key names a secret.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if sensitiveKeys[lower] {
		return true
	}
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveParam reports whether a query parameter names a secret.
func isSensitiveParam(name string) bool {
	return isSensitiveKey(name) || strings.HasSuffix(strings.ToLower(name), "key")
}

// isSensitiveValue reports whether value matches a secret pattern.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// maxScrubDepth bounds how many relay URLs nested in one another are
// unwrapped.
const maxScrubDepth = 3

// ScrubURL masks the userinfo password and credential-like query values of
// an absolute URL. A relay URL embeds the escaped target, either as the
// whole query ("?https%3A...") or as a parameter value ("?url=https%3A..."),
// and that target is scrubbed too. It reports whether anything changed;
// non-URL strings are returned unchanged.
func ScrubURL(s string) (string, bool) {
	return scrubURL(s, maxScrubDepth)
}

func scrubURL(s string, depth int) (string, bool) {
	if depth == 0 || !strings.Contains(s, "://") {
		return s, false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s, false
	}

	changed := false
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}
	if query, ok := scrubQuery(u.RawQuery, depth); ok {
		u.RawQuery = query
		changed = true
	}
	if !changed {
		return s, false
	}

	// Escaping would hide the mask; keep it readable.
	out := u.String()
	for _, escaped := range []string{url.QueryEscape(MaskValue), url.PathEscape(MaskValue)} {
		out = strings.ReplaceAll(out, escaped, MaskValue)
	}
	return out, true
}

// scrubQuery scrubs a raw query string and reports whether it changed.
func scrubQuery(raw string, depth int) (string, bool) {
	if raw == "" {
		return raw, false
	}

	// Prefix-style relay: the whole query is the escaped target.
	if !strings.Contains(raw, "=") {
		inner, err := url.QueryUnescape(raw)
		if err != nil {
			return raw, false
		}
		scrubbed, ok := scrubURL(inner, depth-1)
		if !ok {
			return raw, false
		}
		return url.QueryEscape(scrubbed), true
	}

	q, err := url.ParseQuery(raw)
	if err != nil {
		return raw, false
	}
	changed := false
	for name, values := range q {
		if isSensitiveParam(name) {
			q[name] = []string{MaskValue}
			changed = true
			continue
		}
		for i, v := range values {
			if scrubbed, ok := scrubURL(v, depth-1); ok {
				values[i] = scrubbed
				changed = true
			}
		}
	}
	if !changed {
		return raw, false
	}
	return q.Encode(), true
}

// NewSecureLogger creates a text logger that scrubs secrets.
// verbose selects Debug level; otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger creates a JSON logger that scrubs secrets.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

// handlerOptions returns the level options for verbose.
func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
