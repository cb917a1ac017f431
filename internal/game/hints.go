package game

// Hint thresholds by revealed pixel count.
const (
	HintThresholdSecond = 1000
	HintThresholdThird  = 2000
)

// VisibleHints returns the hints unlocked at the given reveal count, in order.
func VisibleHints(revealed int, hint0, hint1000, hint2000 *string) []string {
	hints := make([]string, 0, 3)
	if hint0 != nil && *hint0 != "" {
		hints = append(hints, *hint0)
	}
	if revealed >= HintThresholdSecond && hint1000 != nil && *hint1000 != "" {
		hints = append(hints, *hint1000)
	}
	if revealed >= HintThresholdThird && hint2000 != nil && *hint2000 != "" {
		hints = append(hints, *hint2000)
	}
	return hints
}
