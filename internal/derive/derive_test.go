package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qgold/goldrates/internal/parse"
)

func TestMetricsFullKaratTable(t *testing.T) {
	fields := parse.RawFieldMap{
		"GXAUUSD_QAR":   "300.00",
		"22GXAUUSD_QAR": "275.00",
		"21GXAUUSD_QAR": "262.50",
	}

	m := Metrics(fields, parse.ChangeMap{}, "QAR")

	require.Len(t, m.GramPrices, 7)
	wantKarats := []string{"24K Gold", "22K Gold", "21K Gold", "18K Gold", "14K Gold", "10K Gold", "6K Gold"}
	for i, want := range wantKarats {
		assert.Equal(t, want, m.GramPrices[i].Karat, "position %d", i)
	}
}

func TestMetricsDerivedArithmetic(t *testing.T) {
	fields := parse.RawFieldMap{"GXAUUSD_QAR": "400.00"}

	m := Metrics(fields, parse.ChangeMap{}, "QAR")

	byKarat := map[string]string{}
	for _, p := range m.GramPrices {
		byKarat[p.Karat] = p.PricePerGram
	}
	assert.Equal(t, "300.00", byKarat["18K Gold"])
	assert.Equal(t, "233.33", byKarat["14K Gold"])
	assert.Equal(t, "166.67", byKarat["10K Gold"])
	assert.Equal(t, "100.00", byKarat["6K Gold"])
}

func TestMetricsThousandsSeparatorInBase(t *testing.T) {
	// Display string keeps the comma; arithmetic strips it.
	fields := parse.RawFieldMap{"GXAUUSD_KWD": "1,200.00"}

	m := Metrics(fields, parse.ChangeMap{}, "KWD")

	require.Len(t, m.GramPrices, 5)
	assert.Equal(t, "1,200.00", m.GramPrices[0].PricePerGram)
	assert.Equal(t, "18K Gold", m.GramPrices[1].Karat)
	assert.Equal(t, "900.00", m.GramPrices[1].PricePerGram)
}

func TestMetricsNoBaseNoDerived(t *testing.T) {
	// 24K missing: directly extracted entries survive, derived ones don't.
	fields := parse.RawFieldMap{
		"22GXAUUSD_QAR": "275.00",
		"21GXAUUSD_QAR": "262.50",
	}

	m := Metrics(fields, parse.ChangeMap{}, "QAR")

	require.Len(t, m.GramPrices, 2)
	assert.Equal(t, "22K Gold", m.GramPrices[0].Karat)
	assert.Equal(t, "21K Gold", m.GramPrices[1].Karat)
}

func TestMetricsZeroBaseNoDerived(t *testing.T) {
	fields := parse.RawFieldMap{"GXAUUSD_QAR": "0"}

	m := Metrics(fields, parse.ChangeMap{}, "QAR")

	require.Len(t, m.GramPrices, 1)
	assert.Equal(t, "24K Gold", m.GramPrices[0].Karat)
}

func TestMetricsEmptyInput(t *testing.T) {
	m := Metrics(parse.RawFieldMap{}, parse.ChangeMap{}, "QAR")

	assert.Empty(t, m.GramPrices)
	assert.Nil(t, m.SpotGold)
	assert.Nil(t, m.SilverPrice)
}

func TestMetricsSpotOnlyIsStillEmpty(t *testing.T) {
	// A page with spot fields but no gram price is treated as unusable.
	fields := parse.RawFieldMap{"XAUUSD_QAR": "9300.00"}

	m := Metrics(fields, parse.ChangeMap{}, "QAR")

	assert.Empty(t, m.GramPrices)
	assert.Nil(t, m.SpotGold)
}

func TestMetricsSpotNAFill(t *testing.T) {
	fields := parse.RawFieldMap{
		"GXAUUSD_QAR": "300.00",
		"XAUUSD_QAR":  "9300.00",
	}

	m := Metrics(fields, parse.ChangeMap{}, "QAR")

	require.NotNil(t, m.SpotGold)
	assert.Equal(t, "9300.00", m.SpotGold.PerOunce)
	assert.Equal(t, NotAvailable, m.SpotGold.PerTola)
	assert.Equal(t, NotAvailable, m.SpotGold.PerKg)
}

func TestMetricsSilverChangeFallback(t *testing.T) {
	fields := parse.RawFieldMap{
		"GXAUUSD_QAR": "300.00",
		"GXAGUSD_QAR": "3.45",
		"XAGUSD_QAR":  "107.20",
	}

	t.Run("prefers ounce change", func(t *testing.T) {
		changes := parse.ChangeMap{
			"XAGUSD_QAR_CHANGE":  {Value: "-0.80", IsDown: true},
			"GXAGUSD_QAR_CHANGE": {Value: "0.02", IsDown: false},
		}
		m := Metrics(fields, changes, "QAR")
		require.NotNil(t, m.SilverPrice)
		assert.Equal(t, "-0.80", m.SilverPrice.Change)
		assert.True(t, m.SilverPrice.IsDown)
	})

	t.Run("falls back to gram change", func(t *testing.T) {
		changes := parse.ChangeMap{
			"GXAGUSD_QAR_CHANGE": {Value: "0.02", IsDown: false},
		}
		m := Metrics(fields, changes, "QAR")
		require.NotNil(t, m.SilverPrice)
		assert.Equal(t, "0.02", m.SilverPrice.Change)
		assert.False(t, m.SilverPrice.IsDown)
	})
}

func TestMetricsEndToEndShape(t *testing.T) {
	fields, changes := parse.Markup(`<html><body>
		<td data-price="GXAUUSD_QAR">300.00</td>
		<td data-price="22GXAUUSD_QAR">275.00</td>
		<td data-price="XAUUSD_QAR">9300.00</td>
		<span class="down"><i id="GXAUUSD_QAR_CHANGE">-2.50</i></span>
	</body></html>`)

	m := Metrics(fields, changes, "QAR")

	require.Len(t, m.GramPrices, 6) // 24K, 22K and four derived
	first := m.GramPrices[0]
	assert.Equal(t, "24K Gold", first.Karat)
	assert.Equal(t, "99.9%", first.Purity)
	assert.Equal(t, "300.00", first.PricePerGram)
	assert.Equal(t, "-2.50", first.Change)
	assert.True(t, first.IsDown)

	assert.Equal(t, "22K Gold", m.GramPrices[1].Karat)
	assert.Equal(t, "275.00", m.GramPrices[1].PricePerGram)

	require.NotNil(t, m.SpotGold)
	assert.Equal(t, "9300.00", m.SpotGold.PerOunce)
	assert.Equal(t, NotAvailable, m.SpotGold.PerTola)
	assert.Equal(t, NotAvailable, m.SpotGold.PerKg)
	assert.Nil(t, m.SilverPrice)
}
