package risk

// MaxDrawdownDuration is the length, in periods, of the longest run where
// the series stays below its running peak. It is 0 for a series that never
// drops below its peak.
func MaxDrawdownDuration(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	longest, current := 0, 0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if v < peak {
			current++
			longest = max(longest, current)
		} else {
			current = 0
		}
	}
	return longest
}

// MaxDrawdown is the most negative (value-peak)/peak over the series, or 0.
// Stretches where the running peak is not positive are skipped.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}
