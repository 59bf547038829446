package logger

import (
	"regexp"
	"strings"
)

// Graph API access tokens and bearer-style secrets occasionally end up in
// URLs or error strings; they must never reach the logs in full.
var tokenParamRegex = regexp.MustCompile(`(access_token|api_key|apikey|token)=([^&\s"]+)`)

// RedactToken masks a credential for safe logging, keeping just enough of
// the prefix to correlate entries: "EAABsbCS1i..." → "EAAB***".
func RedactToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}

func redactSecretValue(key, val string) string {
	lkey := strings.ToLower(key)
	if strings.Contains(lkey, "token") || strings.Contains(lkey, "secret") || strings.Contains(lkey, "api_key") {
		return RedactToken(val)
	}
	// Redact token-bearing query strings in generic fields (URLs, errors)
	return tokenParamRegex.ReplaceAllStringFunc(val, func(m string) string {
		parts := strings.SplitN(m, "=", 2)
		return parts[0] + "=" + RedactToken(parts[1])
	})
}
