// Package strutil holds small string helpers shared across the ai packages.
package strutil

// Truncate caps s at maxLen runes, appending an ellipsis when anything was
// cut. Truncation is rune-based so multi-byte decision contexts (Chinese,
// emoji) are never split mid-character. maxLen <= 0 yields "".
func Truncate(s string, maxLen int) string {
	if s == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
