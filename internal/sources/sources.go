package sources

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Source describes one scrapeable vendor page for a single country.
// The vendor embeds all price fields for a country under one currency
// prefix (e.g. GXAUUSD_QAR), so KeyPrefix is what ties a page to its
// field keys.
type Source struct {
	Slug           string `json:"slug" validate:"required,lowercase"`
	Name           string `json:"name" validate:"required"`
	CurrencyCode   string `json:"currency_code" validate:"required,len=3,uppercase"`
	CurrencySymbol string `json:"currency_symbol" validate:"required"`
	URL            string `json:"url" validate:"required,url"`
	KeyPrefix      string `json:"key_prefix" validate:"required,uppercase"`
}

// DefaultSlug is the primary source; its derived prices are the ones
// persisted to the store.
const DefaultSlug = "qatar"

var All = []Source{
	{Slug: "qatar", Name: "Qatar", CurrencyCode: "QAR", CurrencySymbol: "QR", URL: "https://www.livepriceofgold.com/qatar-gold-price.html", KeyPrefix: "QAR"},
	{Slug: "uae", Name: "United Arab Emirates", CurrencyCode: "AED", CurrencySymbol: "AED", URL: "https://www.livepriceofgold.com/uae-gold-price.html", KeyPrefix: "AED"},
	{Slug: "saudi-arabia", Name: "Saudi Arabia", CurrencyCode: "SAR", CurrencySymbol: "SR", URL: "https://www.livepriceofgold.com/saudi-arabia-gold-price.html", KeyPrefix: "SAR"},
	{Slug: "kuwait", Name: "Kuwait", CurrencyCode: "KWD", CurrencySymbol: "KD", URL: "https://www.livepriceofgold.com/kuwait-gold-price.html", KeyPrefix: "KWD"},
	{Slug: "bahrain", Name: "Bahrain", CurrencyCode: "BHD", CurrencySymbol: "BD", URL: "https://www.livepriceofgold.com/bahrain-gold-price.html", KeyPrefix: "BHD"},
	{Slug: "oman", Name: "Oman", CurrencyCode: "OMR", CurrencySymbol: "RO", URL: "https://www.livepriceofgold.com/oman-gold-price.html", KeyPrefix: "OMR"},
	{Slug: "india", Name: "India", CurrencyCode: "INR", CurrencySymbol: "₹", URL: "https://www.livepriceofgold.com/india-gold-price.html", KeyPrefix: "INR"},
}

var bySlug map[string]Source

func init() {
	bySlug = map[string]Source{}
	for _, s := range All {
		bySlug[s.Slug] = s
	}
}

func BySlug(slug string) (Source, bool) {
	s, ok := bySlug[slug]
	return s, ok
}

func Default() Source {
	return bySlug[DefaultSlug]
}

// Slugs returns all registered slugs in registry order, default first.
func Slugs() []string {
	out := make([]string, 0, len(All))
	for _, s := range All {
		out = append(out, s.Slug)
	}
	return out
}

// Validate checks every registry entry. Called once at startup so a bad
// entry fails the boot instead of a fetch at 3am.
func Validate() error {
	v := validator.New()
	for _, s := range All {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("source %q: %w", s.Slug, err)
		}
	}
	return nil
}
