package health

// ToBuckets reduces an ordered history of arbitrary length to exactly n bucket
// labels for a compact visual strip. An empty history yields all-unknown; a
// history shorter than n is left-padded with unknown so real data sits at the
// tail; a longer history is decimated by point-sampling at a fixed stride.
//
// Each bucket represents one instant, not an average of the stride it covers:
// averaging would hide short outages, point-sampling keeps regressions visible.
// The function is pure; it can be re-derived at any time from the history alone.
func ToBuckets(history []Sample, n int) []Status {
	if n <= 0 {
		n = DefaultBucketCount
	}
	buckets := make([]Status, 0, n)

	switch {
	case len(history) == 0:
		for i := 0; i < n; i++ {
			buckets = append(buckets, StatusUnknown)
		}
	case len(history) < n:
		for i := len(history); i < n; i++ {
			buckets = append(buckets, StatusUnknown)
		}
		for _, s := range history {
			buckets = append(buckets, s.Status)
		}
	default:
		step := len(history) / n
		for i := 0; i < n; i++ {
			idx := i * step
			if idx > len(history)-1 {
				idx = len(history) - 1
			}
			buckets = append(buckets, history[idx].Status)
		}
	}
	return buckets
}
