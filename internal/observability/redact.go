package observability

import "strings"

// sensitiveKeys are field names redacted before a payload is logged.
var sensitiveKeys = map[string]bool{
	"api_key":      true,
	"authorization": true,
	"password":     true,
	"token":        true,
	"embedding":    true, // huge, never useful in a log line
}

// Redact returns a shallow copy of m with sensitive values replaced, for safe
// inclusion in log events. Nested maps are redacted recursively.
func Redact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = "[redacted]"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}
