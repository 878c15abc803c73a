package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

// sensitiveKeys never reach a log line in clear text. Keys ending in one of
// sensitiveSuffixes are treated the same way, so "indexer_dsn" and
// "envelope_signature" need no entry of their own.
var sensitiveKeys = map[string]struct{}{
	"signature":     {},
	"passphrase":    {},
	"password":      {},
	"private_key":   {},
	"authorization": {},
	"headers":       {},
	"dsn":           {},
}

var sensitiveSuffixes = []string{"_signature", "_passphrase", "_password", "_headers", "_dsn"}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if _, ok := sensitiveKeys[normalized]; ok {
		return true
	}
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return true
		}
	}
	return false
}

// MaskValue returns the canonical redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskDSN hides the credentials of a database DSN and keeps the rest readable.
// URL DSNs lose their password, key=value DSNs lose the password pair, and
// anything else (a sqlite path) is returned unchanged.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return RedactedValue
		}
		if u.User == nil {
			return trimmed
		}
		if _, hasPassword := u.User.Password(); !hasPassword {
			return trimmed
		}
		user := u.User.Username()
		bare := *u
		bare.User = nil
		rest := strings.TrimPrefix(bare.String(), u.Scheme+"://")
		return u.Scheme + "://" + user + ":" + RedactedValue + "@" + rest
	}
	if strings.Contains(trimmed, "=") {
		fields := strings.Fields(trimmed)
		for i, field := range fields {
			key, _, ok := strings.Cut(field, "=")
			if ok && strings.EqualFold(key, "password") {
				fields[i] = key + "=" + RedactedValue
			}
		}
		return strings.Join(fields, " ")
	}
	return trimmed
}

// MaskField returns a string attribute, masked when key is sensitive. DSN keys
// keep their host and database visible.
func MaskField(key, value string) slog.Attr {
	return RedactAttr(nil, slog.String(key, value))
}

// RedactAttr is a slog ReplaceAttr hook masking string attributes stored
// under sensitive keys. Setup installs it on every handler, so attributes
// nested in groups are covered too.
func RedactAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !IsSensitive(attr.Key) {
		return attr
	}
	value := attr.Value.String()
	if strings.TrimSpace(value) == "" {
		return attr
	}
	normalized := strings.ToLower(attr.Key)
	if normalized == "dsn" || strings.HasSuffix(normalized, "_dsn") {
		return slog.String(attr.Key, MaskDSN(value))
	}
	return slog.String(attr.Key, RedactedValue)
}
