/*
report.go - Derived kitchen reports

PURPOSE:
  Read-only summaries over the catalog, the projector and the logs. None of
  them feed back into balances.

REPORTS:
  RestockSuggestions  shopping list: OUT buys ceil(min*2), LOW tops up to
                      ceil(min*2 - quantity)
  HealthScore         share of ingredients that are neither LOW nor OUT
  Usage               DEDUCTION totals per ingredient from the ledger
  SalesSummary        units sold per menu from the sales log
*/
package stock

import (
	"sort"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// RestockSuggestion is one shopping-list line.
type RestockSuggestion struct {
	Ingredient
	Status StockStatus
	Buy    decimal.Decimal // in the ingredient's unit
}

func restockSuggestions(items []LowStockItem) []RestockSuggestion {
	out := make([]RestockSuggestion, 0, len(items))
	for _, it := range items {
		target := it.MinThreshold.Mul(two)
		buy := target.Ceil()
		if it.Status == StatusLow {
			buy = target.Sub(it.Quantity).Ceil()
		}
		out = append(out, RestockSuggestion{Ingredient: it.Ingredient, Status: it.Status, Buy: buy})
	}
	return out
}

// healthScore is round((n - critical) / n * 100), 100 for an empty catalog.
func healthScore(total, critical int) int {
	if total == 0 {
		return 100
	}
	return int(decimal.NewFromInt(int64(total - critical)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0).IntPart())
}

// UsageLine is the consumption of one ingredient over a period.
type UsageLine struct {
	IngredientID IngredientID
	Name         string
	Unit         string
	Used         decimal.Decimal
	Movements    int
}

func sortUsage(lines []UsageLine) {
	sort.Slice(lines, func(i, j int) bool {
		if c := lines[i].Used.Cmp(lines[j].Used); c != 0 {
			return c > 0
		}
		return lines[i].IngredientID < lines[j].IngredientID
	})
}

// MenuSales is the number of units sold of one menu item over a period.
type MenuSales struct {
	MenuID   MenuID
	MenuName string
	Quantity int
	Sales    int
}

func sortMenuSales(lines []MenuSales) {
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Quantity != lines[j].Quantity {
			return lines[i].Quantity > lines[j].Quantity
		}
		return lines[i].MenuName < lines[j].MenuName
	})
}
