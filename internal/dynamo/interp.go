package dynamo

import "sort"

// Locate returns the greatest index k with times[k] <= t and the linear weight
// of sample k+1. At duplicated time stamps the later (post-jump) sample wins.
// Times outside the grid are clamped.
func Locate(times []float64, t float64) (int, float64) {
	n := len(times)
	if n == 0 || t <= times[0] {
		if n > 1 && t == times[0] && times[1] == times[0] {
			return 1, 0
		}
		return 0, 0
	}
	if t >= times[n-1] {
		return n - 1, 0
	}
	k := sort.Search(n, func(i int) bool { return times[i] > t }) - 1
	dt := times[k+1] - times[k]
	if dt <= 0 {
		return k, 0
	}
	return k, (t - times[k]) / dt
}

// Lerp returns (1-alpha)*a + alpha*b in a new slice.
func Lerp(a, b []float64, alpha float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + alpha*(b[i]-a[i])
	}
	return out
}
