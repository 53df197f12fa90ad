package model

// Window converts a half-open [start:end) slice request over n elements into
// in-range bounds. Negative bounds count from the end, as in GET /users where
// skip+limit may be negative; bounds past either end are clamped and an
// inverted range is empty.
func Window(n, start, end int) (int, int) {
	start = clampIndex(n, start)
	end = clampIndex(n, end)
	if end < start {
		end = start
	}
	return start, end
}

func clampIndex(n, i int) int {
	if i < 0 {
		i += n
		if i < 0 {
			return 0
		}
	}
	if i > n {
		return n
	}
	return i
}
