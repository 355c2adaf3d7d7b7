package cyclecount

import (
	"github.com/shopspring/decimal"

	"cyclecount-service/internal/model"
)

// Summary aggregates variance and progress figures for one count. It is
// recomputed from the item list on every request so it can never lag behind
// an edit.
type Summary struct {
	TotalItems            int             `json:"total_items"`
	CountedItems          int             `json:"counted_items"`
	ItemsWithVariance     int             `json:"items_with_variance"`
	TotalPositiveVariance int             `json:"total_positive_variance"`
	TotalNegativeVariance int             `json:"total_negative_variance"`
	PositiveVarianceCost  decimal.Decimal `json:"positive_variance_cost"`
	NegativeVarianceCost  decimal.Decimal `json:"negative_variance_cost"`
	NetVarianceCost       decimal.Decimal `json:"net_variance_cost"`
	AccuracyRate          float64         `json:"accuracy_rate"`
	ProgressPercent       float64         `json:"progress_percent"`
}

// Summarize derives the variance and cost summary for a set of count items.
// Pure and side-effect-free: safe to call on every read.
func Summarize(items []model.CycleCountItem) Summary {
	s := Summary{
		TotalItems:           len(items),
		PositiveVarianceCost: decimal.Zero,
		NegativeVarianceCost: decimal.Zero,
		NetVarianceCost:      decimal.Zero,
	}

	for i := range items {
		item := &items[i]
		variance, counted := item.Variance()
		if !counted {
			continue
		}
		s.CountedItems++
		if variance == 0 {
			continue
		}
		s.ItemsWithVariance++
		cost := item.Product.UnitCost.Mul(decimal.NewFromInt(int64(variance)))
		if variance > 0 {
			s.TotalPositiveVariance += variance
			s.PositiveVarianceCost = s.PositiveVarianceCost.Add(cost)
		} else {
			s.TotalNegativeVariance += -variance
			s.NegativeVarianceCost = s.NegativeVarianceCost.Add(cost.Abs())
		}
	}

	s.NetVarianceCost = s.PositiveVarianceCost.Sub(s.NegativeVarianceCost)

	// Vacuous accuracy: an uncounted count has found no discrepancies.
	s.AccuracyRate = 100.0
	if s.CountedItems > 0 {
		s.AccuracyRate = float64(s.CountedItems-s.ItemsWithVariance) / float64(s.CountedItems) * 100
	}

	if s.TotalItems > 0 {
		s.ProgressPercent = float64(s.CountedItems) / float64(s.TotalItems) * 100
	}

	return s
}
