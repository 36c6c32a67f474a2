package util

import "strings"

var truthyValues = map[string]bool{
	"true": true,
	"1":    true,
	"yes":  true,
	"on":   true,
}

// Truthy reports whether s spells out an enabled switch, as used by
// environment variables such as SENTRY_DEBUG.
func Truthy(s string) bool {
	return truthyValues[strings.ToLower(strings.TrimSpace(s))]
}
