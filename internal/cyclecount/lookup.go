package cyclecount

import (
	"strings"

	"cyclecount-service/internal/model"
)

// MatchItem resolves a scanned barcode or typed SKU to an item of the count.
// Matching is a case-insensitive exact comparison against the product SKU
// first, then the product barcode; the first match wins. A miss returns nil —
// it is a UI signal, not an error.
func MatchItem(items []model.CycleCountItem, token string) *model.CycleCountItem {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	for i := range items {
		if strings.EqualFold(items[i].Product.SKU, token) {
			return &items[i]
		}
	}
	for i := range items {
		if items[i].Product.Barcode != "" && strings.EqualFold(items[i].Product.Barcode, token) {
			return &items[i]
		}
	}
	return nil
}
