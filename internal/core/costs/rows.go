package costs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ExtractRows flattens Cost Explorer periods into one row per period and
// service group, rounding each amount to cents. Groups without keys are
// skipped.
func ExtractRows(periods []Period) ([]CostRow, error) {
	var rows []CostRow
	for _, period := range periods {
		for _, group := range period.Groups {
			if len(group.Keys) == 0 {
				continue
			}
			amount, err := strconv.ParseFloat(strings.TrimSpace(group.Amount), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid amount %q for %s: %w", group.Amount, group.Keys[0], err)
			}
			if math.IsNaN(amount) || math.IsInf(amount, 0) {
				return nil, fmt.Errorf("invalid amount %q for %s: not a finite number", group.Amount, group.Keys[0])
			}
			rows = append(rows, CostRow{
				Service: group.Keys[0],
				Cost:    RoundCents(amount),
			})
		}
	}
	return rows, nil
}

// RoundCents rounds an amount to two decimal places. Rounding is done on
// the exact binary value with ties to even, so 0.125 becomes 0.12 and 2.675
// (stored just below) becomes 2.67.
func RoundCents(amount float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(amount, 'f', 2, 64), 64)
	if err != nil {
		return amount
	}
	return rounded
}
