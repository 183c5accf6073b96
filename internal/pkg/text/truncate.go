// Package text holds small string helpers shared by the notification
// formatters.
package text

// Truncate caps s at max bytes, appending an ellipsis when it cuts.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
