package bill

import "sort"

// SortByDateDesc orders bills most recent first.
// Bills whose date cannot be parsed go last; equal dates keep their input order.
func SortByDateDesc(bills []Bill) []Bill {
	sorted := make([]Bill, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, okI := sorted[i].ParsedDate()
		dj, okJ := sorted[j].ParsedDate()
		switch {
		case okI && okJ:
			return di.After(dj)
		case okI:
			return true
		default:
			return false
		}
	})
	return sorted
}
