package derive

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/qgold/goldrates/internal/parse"
)

// Vendor key stems; the source's currency prefix is appended to each.
const (
	stemGram24K  = "GXAUUSD_"
	stemGram22K  = "22GXAUUSD_"
	stemGram21K  = "21GXAUUSD_"
	stemSpotOz   = "XAUUSD_"
	stemSpotTola = "TXAUUSD_"
	stemSpotKg   = "KXAUUSD_"
	stemSilverG  = "GXAGUSD_"
	stemSilverOz = "XAGUSD_"
	stemSilverKg = "KXAGUSD_"
)

// NotAvailable fills missing sub-fields of spot/silver records so consumers
// always see a fixed-shape record.
const NotAvailable = "N/A"

// GramPrice is one row of the per-gram price table.
type GramPrice struct {
	Karat        string `json:"karat"`
	Purity       string `json:"purity"`
	PricePerGram string `json:"price_per_gram"`
	Change       string `json:"change,omitempty"`
	IsDown       bool   `json:"is_down,omitempty"`
}

// SpotMetric is the international spot gold price in the source currency.
type SpotMetric struct {
	PerOunce string `json:"per_ounce"`
	PerTola  string `json:"per_tola"`
	PerKg    string `json:"per_kg"`
	Change   string `json:"change,omitempty"`
	IsDown   bool   `json:"is_down,omitempty"`
}

// SilverMetric mirrors SpotMetric for silver, plus a per-gram price.
type SilverMetric struct {
	PerGram  string `json:"per_gram"`
	PerOunce string `json:"per_ounce"`
	PerKg    string `json:"per_kg"`
	Change   string `json:"change,omitempty"`
	IsDown   bool   `json:"is_down,omitempty"`
}

// GoldMetrics is the normalized result for one source. It is either
// non-empty (at least one gram entry) or the canonical empty value; callers
// treat the empty value as an unproductive fetch.
type GoldMetrics struct {
	GramPrices  []GramPrice   `json:"gram_prices"`
	SpotGold    *SpotMetric   `json:"spot_gold,omitempty"`
	SilverPrice *SilverMetric `json:"silver_price,omitempty"`
}

// Karats the vendor publishes directly, with their purity labels.
var extractedKarats = []struct {
	stem   string
	label  string
	purity string
}{
	{stemGram24K, "24K Gold", "99.9%"},
	{stemGram22K, "22K Gold", "91.6%"},
	{stemGram21K, "21K Gold", "87.5%"},
}

// Karats derived from the 24K gram price by purity ratio (karat/24). The
// vendor supplies no trend data for these, so they carry no change fields.
var derivedKarats = []struct {
	karat  int64
	label  string
	purity string
}{
	{18, "18K Gold", "75.0%"},
	{14, "14K Gold", "58.3%"},
	{10, "10K Gold", "41.7%"},
	{6, "6K Gold", "25.0%"},
}

var twentyFour = decimal.NewFromInt(24)

// Metrics assembles GoldMetrics for one currency prefix from the flat maps
// produced by parse.Markup.
func Metrics(fields parse.RawFieldMap, changes parse.ChangeMap, prefix string) GoldMetrics {
	var out GoldMetrics

	for _, k := range extractedKarats {
		key := k.stem + prefix
		raw, ok := fields[key]
		if !ok {
			continue
		}
		// Display strings stay vendor-authentic, separators and all.
		entry := GramPrice{Karat: k.label, Purity: k.purity, PricePerGram: raw}
		if ch, ok := changes[key+parse.ChangeSuffix]; ok {
			entry.Change = ch.Value
			entry.IsDown = ch.IsDown
		}
		out.GramPrices = append(out.GramPrices, entry)
	}

	if base, ok := parseAmount(fields[stemGram24K+prefix]); ok && base.IsPositive() {
		for _, d := range derivedKarats {
			price := base.Mul(decimal.NewFromInt(d.karat)).Div(twentyFour)
			out.GramPrices = append(out.GramPrices, GramPrice{
				Karat:        d.label,
				Purity:       d.purity,
				PricePerGram: price.StringFixed(2),
			})
		}
	}

	if len(out.GramPrices) == 0 {
		// No recognizable gram price at all: the page shape is unusable.
		return GoldMetrics{}
	}

	ozKey := stemSpotOz + prefix
	tolaKey := stemSpotTola + prefix
	kgKey := stemSpotKg + prefix
	if anyPresent(fields, ozKey, tolaKey, kgKey) {
		spot := &SpotMetric{
			PerOunce: orNA(fields, ozKey),
			PerTola:  orNA(fields, tolaKey),
			PerKg:    orNA(fields, kgKey),
		}
		if ch, ok := changes[ozKey+parse.ChangeSuffix]; ok {
			spot.Change = ch.Value
			spot.IsDown = ch.IsDown
		}
		out.SpotGold = spot
	}

	sGramKey := stemSilverG + prefix
	sOzKey := stemSilverOz + prefix
	sKgKey := stemSilverKg + prefix
	if anyPresent(fields, sGramKey, sOzKey, sKgKey) {
		silver := &SilverMetric{
			PerGram:  orNA(fields, sGramKey),
			PerOunce: orNA(fields, sOzKey),
			PerKg:    orNA(fields, sKgKey),
		}
		if ch, ok := changes[sOzKey+parse.ChangeSuffix]; ok {
			silver.Change = ch.Value
			silver.IsDown = ch.IsDown
		} else if ch, ok := changes[sGramKey+parse.ChangeSuffix]; ok {
			silver.Change = ch.Value
			silver.IsDown = ch.IsDown
		}
		out.SilverPrice = silver
	}

	sort.SliceStable(out.GramPrices, func(i, j int) bool {
		return karatNumber(out.GramPrices[i].Karat) > karatNumber(out.GramPrices[j].Karat)
	})

	return out
}

// parseAmount coerces a vendor display string into a decimal for
// arithmetic, stripping thousands separators.
func parseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func anyPresent(fields parse.RawFieldMap, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func orNA(fields parse.RawFieldMap, key string) string {
	if v, ok := fields[key]; ok {
		return v
	}
	return NotAvailable
}

// karatNumber reads the integer prefix of a karat label ("22K Gold" -> 22).
func karatNumber(label string) int {
	i := 0
	for i < len(label) && label[i] >= '0' && label[i] <= '9' {
		i++
	}
	n, err := strconv.Atoi(label[:i])
	if err != nil {
		return 0
	}
	return n
}
