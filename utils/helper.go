package utils

import "github.com/shopspring/decimal"

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// RoundMoney applies the repository-wide rounding policy for monetary
// amounts: round-half-up to 4 decimal places, matching the decimal(20,4)
// columns every balance and ledger row is stored in.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

func MergeIntSlices(slice1, slice2 []int) []int {
	seen := make(map[int]bool, len(slice1)+len(slice2))
	merged := make([]int, 0, len(slice1)+len(slice2))
	for _, v := range slice1 {
		if !seen[v] {
			seen[v] = true
			merged = append(merged, v)
		}
	}
	for _, v := range slice2 {
		if !seen[v] {
			seen[v] = true
			merged = append(merged, v)
		}
	}
	return merged
}
