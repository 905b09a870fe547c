// Package iso8601 formats and parses the timestamps written to audit logs
// and notification payloads.
package iso8601

import "time"

// Format outputs an ISO-8601 datetime string from the given time in UTC,
// in a format compatible with the AWS SDKs and CloudWatch Logs Insights.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Parse reads a timestamp produced by Format. Fractional seconds are accepted.
func Parse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
