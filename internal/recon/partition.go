package recon

import (
	"cmp"
	"slices"
)

// SortResults returns results ordered by identifier, molecular weight when
// present, then run date. Rows without a weight sort after rows with one.
func SortResults(results []AssayResult) []AssayResult {
	out := slices.Clone(results)
	slices.SortStableFunc(out, func(a, b AssayResult) int {
		if c := cmp.Compare(a.Identifier, b.Identifier); c != 0 {
			return c
		}
		switch {
		case a.HasWeight && b.HasWeight:
			if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
				return c
			}
		case a.HasWeight:
			return -1
		case b.HasWeight:
			return 1
		}
		return cmp.Compare(a.Date, b.Date)
	})
	return out
}

// PartitionByOperator splits results on an exact operator match. Order is
// preserved and every input row lands in exactly one side.
func PartitionByOperator(results []AssayResult, operator string) (match, rest []AssayResult) {
	for _, r := range results {
		if r.Operator == operator {
			match = append(match, r)
		} else {
			rest = append(rest, r)
		}
	}
	return match, rest
}
