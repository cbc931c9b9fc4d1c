package utils

import "regexp"

var (
	apiKeyParamPattern    = regexp.MustCompile(`(?i)(api_?key=)[^&\s]+`)
	signatureParamPattern = regexp.MustCompile(`(?i)(signature=)[^&\s]+`)
	longTokenPattern      = regexp.MustCompile(`[A-Za-z0-9]{32,}`)
	ipv4Pattern           = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// SanitizeMessage masks API keys, signatures, long opaque tokens and IPv4 addresses
// before an upstream error is shown to the user.
func SanitizeMessage(msg string) string {
	msg = apiKeyParamPattern.ReplaceAllString(msg, "${1}***")
	msg = signatureParamPattern.ReplaceAllString(msg, "${1}***")
	msg = longTokenPattern.ReplaceAllString(msg, "***")
	msg = ipv4Pattern.ReplaceAllString(msg, "*.*.*.*")
	return msg
}
