package stock

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STOCK STATUS
// =============================================================================

type StockStatus string

const (
	StatusOK  StockStatus = "OK"
	StatusLow StockStatus = "LOW"
	StatusOut StockStatus = "OUT_OF_STOCK"
)

// Classify applies the default policy: quantity <= 0 is OUT,
// 0 < quantity <= threshold is LOW. Both comparisons use Epsilon.
func Classify(quantity, threshold decimal.Decimal) StockStatus {
	if atMost(quantity, decimal.Zero) {
		return StatusOut
	}
	if atMost(quantity, threshold) {
		return StatusLow
	}
	return StatusOK
}

// ThresholdPolicy decides when an ingredient counts as low.
type ThresholdPolicy struct {
	// Factor scales every MinThreshold, e.g. 1.5 to warn earlier.
	// Zero means 1.
	Factor decimal.Decimal
}

// DefaultPolicy classifies against MinThreshold as-is.
var DefaultPolicy = ThresholdPolicy{}

func (p ThresholdPolicy) Classify(ing Ingredient) StockStatus {
	threshold := ing.MinThreshold
	if !p.Factor.IsZero() {
		threshold = threshold.Mul(p.Factor)
	}
	return Classify(ing.Quantity, threshold)
}

// LowStockItem is an ingredient with a non-OK status.
type LowStockItem struct {
	Ingredient
	Status StockStatus
}

// lowStock filters and orders ingredients: OUT first, then LOW, each by name.
func lowStock(ings []Ingredient, policy ThresholdPolicy) []LowStockItem {
	var out []LowStockItem
	for _, ing := range ings {
		if s := policy.Classify(ing); s != StatusOK {
			out = append(out, LowStockItem{Ingredient: ing, Status: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status == StatusOut
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
