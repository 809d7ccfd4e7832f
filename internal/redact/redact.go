package redact

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/straja-ai/adaware/internal/logger"
)

var (
	authHeaderRe  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	bearerRe      = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	apiKeyListRe  = regexp.MustCompile(`(?i)(api[_-]?keys?\s*[:=]\s*\[)([^\]]+)(\])`)
	apiKeyValueRe = regexp.MustCompile(`(?i)(api[_-]?key(?:s)?\s*[:=]\s*)([A-Za-z0-9._\-+/=]+)`)
	headerKeyRe   = regexp.MustCompile(`(?i)(x-api-key)\s*[:=]\s*([A-Za-z0-9._\-+/=]+)`)
	openAIKeyRe   = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
	googleKeyRe   = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{20,}`)
	dsnPasswordRe = regexp.MustCompile(`(?i)(postgres(?:ql)?://[^:/\s]+:)([^@\s]+)(@)`)
	tokenishKeyRe = regexp.MustCompile(`(?i)(key|token|password)\s*[:=]\s*([A-Za-z0-9._\-+/=]{6,})`)
	urlRe         = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// String redacts known secret patterns from free-form strings. Page and
// image URLs keep scheme, host and the last path element only.
func String(s string) string {
	if s == "" {
		return s
	}

	out := s
	out = dsnPasswordRe.ReplaceAllString(out, "${1}[REDACTED]${3}")
	out = authHeaderRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyListRe.ReplaceAllString(out, "${1}REDACTED${3}")
	out = apiKeyValueRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = headerKeyRe.ReplaceAllString(out, "${1}=[REDACTED]")
	out = openAIKeyRe.ReplaceAllString(out, "sk-[REDACTED]")
	out = googleKeyRe.ReplaceAllString(out, "AIza[REDACTED]")
	out = tokenishKeyRe.ReplaceAllStringFunc(out, func(s string) string {
		if strings.Contains(s, "[REDACTED]") {
			return s
		}
		m := tokenishKeyRe.FindStringSubmatch(s)
		if len(m) < 3 {
			return s
		}
		return m[1] + "=[REDACTED]"
	})
	out = urlRe.ReplaceAllStringFunc(out, redactURL)
	for strings.Contains(out, "[REDACTED][REDACTED]") {
		out = strings.ReplaceAll(out, "[REDACTED][REDACTED]", "[REDACTED]")
	}
	return out
}

// Any formats the value with %+v and redacts secrets.
func Any(v any) string {
	return String(fmt.Sprintf("%+v", v))
}

// Sprintf formats like fmt.Sprintf and redacts the result.
func Sprintf(format string, args ...interface{}) string {
	return String(fmt.Sprintf(format, args...))
}

// Logf logs a redacted info line.
func Logf(format string, args ...interface{}) {
	logger.Log.Info(Sprintf(format, args...))
}

// Warnf logs a redacted warning.
func Warnf(format string, args ...interface{}) {
	logger.Log.Warn(Sprintf(format, args...))
}

// Fatalf logs a redacted line and exits.
func Fatalf(format string, args ...interface{}) {
	logger.Log.Fatal(Sprintf(format, args...))
}

func redactURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}

	host := u.Host
	if u.User != nil {
		host = u.Hostname()
		if p := u.Port(); p != "" {
			host += ":" + p
		}
	}
	if strings.HasSuffix(trimmed, "/") {
		return fmt.Sprintf("%s://%s/[REDACTED_PATH]", u.Scheme, host)
	}

	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" || base == "" {
		return fmt.Sprintf("%s://%s/[REDACTED_PATH]", u.Scheme, host)
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, host, base)
}
