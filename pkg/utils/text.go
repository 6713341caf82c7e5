// Package utils provides shared utilities for text, math, retries and logging.
package utils

// Truncate returns s cut to maxLen runes with "..." appended when it was longer.
// A maxLen of 0 or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
