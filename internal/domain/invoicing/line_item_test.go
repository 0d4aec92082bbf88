package invoicing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeAmount(t *testing.T) {
	t.Run("quantity times rate", func(t *testing.T) {
		item := NewLineItem("Plan review", dec("3"), dec("125.50"))
		assert.True(t, item.Amount.Equal(dec("376.50")))
	})

	t.Run("rounds to cents", func(t *testing.T) {
		item := NewLineItem("Mileage", dec("12.345"), dec("0.67"))
		assert.Equal(t, "8.27", item.Amount.StringFixed(2))
	})

	t.Run("unset rate counts as zero", func(t *testing.T) {
		q := dec("2")
		assert.True(t, ComputeAmount(LineItem{Quantity: &q}).IsZero())
	})
}

func TestLineItem_Setters(t *testing.T) {
	t.Run("changing quantity overwrites a fixed amount", func(t *testing.T) {
		item := NewFixedFeeLineItem("Permit filing", dec("500"))
		item.SetRate(dec("100"))
		assert.True(t, item.Amount.IsZero(), "quantity unset yet")
		item.SetQuantity(dec("2"))
		assert.True(t, item.Amount.Equal(dec("200")))
	})

	t.Run("changing description keeps amount", func(t *testing.T) {
		item := NewFixedFeeLineItem("Permit filing", dec("500"))
		item.SetDescription("Permit filing - expedited")
		assert.True(t, item.Amount.Equal(dec("500")))
	})
}

func TestComputeSubtotal(t *testing.T) {
	items := []LineItem{
		NewLineItem("Site visit", dec("2"), dec("150")),
		NewFixedFeeLineItem("Filing fee", dec("75.25")),
		{Description: "Empty row"},
	}

	want := decimal.Zero
	for _, it := range items {
		if it.Quantity != nil && it.Rate != nil {
			want = want.Add(it.Quantity.Mul(*it.Rate))
		} else {
			want = want.Add(it.Amount)
		}
	}

	got := ComputeSubtotal(items)
	assert.True(t, got.Equal(want))
	assert.True(t, got.Equal(dec("375.25")))
	assert.True(t, ComputeSubtotal(nil).IsZero())
}

func TestComputeTotalDue(t *testing.T) {
	assert.True(t, ComputeTotalDue(dec("1000"), dec("400")).Equal(dec("600")))
	assert.True(t, ComputeTotalDue(dec("1000"), decimal.Zero).Equal(dec("1000")))
}

func TestComputeSubtotal_NoDriftOverRepeatedEdits(t *testing.T) {
	item := NewLineItem("Hourly", dec("1"), dec("0.10"))
	for i := 0; i < 1000; i++ {
		item.SetQuantity(item.Quantity.Add(decimal.NewFromInt(1)))
	}
	assert.Equal(t, "100.10", item.Amount.StringFixed(2))
}

func TestLineItems_ValueScan(t *testing.T) {
	items := LineItems{
		NewLineItem("Consulting", dec("1.5"), dec("200")),
		NewFixedFeeLineItem("Filing", dec("50")),
	}

	v, err := items.Value()
	require.NoError(t, err)

	var scanned LineItems
	require.NoError(t, scanned.Scan(v))
	require.Len(t, scanned, 2)
	assert.True(t, scanned[0].Amount.Equal(dec("300")))
	assert.Nil(t, scanned[1].Quantity)

	var empty LineItems
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
	assert.Error(t, empty.Scan(42))

	raw, err := json.Marshal(scanned[1])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "quantity")
}
