package ingest

import "strings"

var normalizer = strings.NewReplacer("\r", "", "\t", " ", "\u00a0", " ")

// Normalize drops carriage returns and turns tabs and non-breaking spaces into spaces.
// Newlines are kept so paragraph breaks survive.
func Normalize(text string) string {
	return normalizer.Replace(text)
}
