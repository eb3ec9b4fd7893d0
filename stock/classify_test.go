package stock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/kitchen-stock/stock"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		quantity  string
		threshold string
		want      stock.StockStatus
	}{
		{"zero is out", "0", "5", stock.StatusOut},
		{"negative is out", "-2", "5", stock.StatusOut},
		{"dust is out", "0.0000000001", "5", stock.StatusOut},
		{"at threshold is low", "5", "5", stock.StatusLow},
		{"within epsilon of threshold is low", "5.0000000001", "5", stock.StatusLow},
		{"below threshold is low", "4.99", "5", stock.StatusLow},
		{"above threshold is ok", "5.01", "5", stock.StatusOK},
		{"zero threshold, some stock", "1", "0", stock.StatusOK},
		{"zero threshold, none", "0", "0", stock.StatusOut},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stock.Classify(d(tt.quantity), d(tt.threshold)))
		})
	}
}

func TestThresholdPolicy_ScalesThreshold(t *testing.T) {
	ing := stock.Ingredient{Quantity: d("15"), MinThreshold: d("10")}

	assert.Equal(t, stock.StatusOK, stock.DefaultPolicy.Classify(ing))
	assert.Equal(t, stock.StatusLow, stock.ThresholdPolicy{Factor: d("1.5")}.Classify(ing))
	assert.Equal(t, stock.StatusOK, stock.ThresholdPolicy{Factor: d("1.4")}.Classify(ing))
}
