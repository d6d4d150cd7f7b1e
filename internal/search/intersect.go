package search

import "cmp"

// Intersect returns the elements present in both a and b. Both inputs must
// be sorted ascending and free of duplicates; the result is too.
func Intersect[T cmp.Ordered](a, b []T) []T {
	result := make([]T, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			result = append(result, a[i])
			i++
			j++
		}
	}
	return result
}
