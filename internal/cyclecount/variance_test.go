package cyclecount

import (
	"testing"

	"github.com/shopspring/decimal"

	"cyclecount-service/internal/model"
)

func item(expected int, counted *int, cost string) model.CycleCountItem {
	unitCost, _ := decimal.NewFromString(cost)
	return model.CycleCountItem{
		ExpectedQty: expected,
		CountedQty:  counted,
		Product:     model.Product{UnitCost: unitCost},
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.AccuracyRate != 100.0 {
		t.Errorf("expected vacuous accuracy 100.0, got %v", summary.AccuracyRate)
	}
	if summary.ProgressPercent != 0 {
		t.Errorf("expected progress 0, got %v", summary.ProgressPercent)
	}
	if !summary.NetVarianceCost.IsZero() {
		t.Errorf("expected zero net cost, got %s", summary.NetVarianceCost)
	}
}

func TestSummarizeUncountedOnly(t *testing.T) {
	items := []model.CycleCountItem{
		item(100, nil, "2.00"),
		item(50, nil, "3.00"),
	}
	summary := Summarize(items)
	if summary.CountedItems != 0 {
		t.Errorf("expected 0 counted, got %d", summary.CountedItems)
	}
	// Accuracy is defined as 100.0 with nothing counted, never a division by zero.
	if summary.AccuracyRate != 100.0 {
		t.Errorf("expected accuracy 100.0, got %v", summary.AccuracyRate)
	}
	if summary.ProgressPercent != 0 {
		t.Errorf("expected progress 0, got %v", summary.ProgressPercent)
	}
}

func TestSummarizeMixedVariances(t *testing.T) {
	items := []model.CycleCountItem{
		item(100, intPtr(95), "2.50"), // -5 × 2.50 = -12.50
		item(50, intPtr(50), "4.00"),  // exact
		item(10, intPtr(14), "1.25"),  // +4 × 1.25 = +5.00
		item(30, nil, "9.99"),         // uncounted
	}
	summary := Summarize(items)

	if summary.TotalItems != 4 || summary.CountedItems != 3 {
		t.Errorf("total/counted wrong: %+v", summary)
	}
	if summary.ItemsWithVariance != 2 {
		t.Errorf("expected 2 variance items, got %d", summary.ItemsWithVariance)
	}
	if summary.TotalPositiveVariance != 4 || summary.TotalNegativeVariance != 5 {
		t.Errorf("variance totals wrong: %+v", summary)
	}
	if summary.PositiveVarianceCost.String() != "5" {
		t.Errorf("expected positive cost 5, got %s", summary.PositiveVarianceCost)
	}
	if summary.NegativeVarianceCost.String() != "12.5" {
		t.Errorf("expected negative cost 12.5, got %s", summary.NegativeVarianceCost)
	}
	if summary.NetVarianceCost.String() != "-7.5" {
		t.Errorf("expected net cost -7.5, got %s", summary.NetVarianceCost)
	}

	// 1 of 3 counted items matched expectations.
	want := float64(3-2) / 3 * 100
	if summary.AccuracyRate != want {
		t.Errorf("expected accuracy %v, got %v", want, summary.AccuracyRate)
	}
	if summary.ProgressPercent != 75.0 {
		t.Errorf("expected progress 75.0, got %v", summary.ProgressPercent)
	}
}

func TestSummarizeIsPure(t *testing.T) {
	items := []model.CycleCountItem{item(100, intPtr(90), "1.00")}
	first := Summarize(items)
	second := Summarize(items)
	if first.ItemsWithVariance != second.ItemsWithVariance ||
		!first.NetVarianceCost.Equal(second.NetVarianceCost) ||
		first.AccuracyRate != second.AccuracyRate {
		t.Errorf("Summarize not deterministic: %+v vs %+v", first, second)
	}
	if items[0].CountedQty == nil || *items[0].CountedQty != 90 {
		t.Error("Summarize mutated its input")
	}

	// Editing the counted quantity is reflected on the next derivation.
	items[0].CountedQty = intPtr(100)
	third := Summarize(items)
	if third.ItemsWithVariance != 0 {
		t.Errorf("summary went stale after an edit: %+v", third)
	}
}
