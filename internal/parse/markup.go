package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The vendor marks price cells with a data-price attribute whose value is
// the field key (e.g. GXAUUSD_QAR), and change cells with an element id of
// field key + "_CHANGE". A decrease is flagged by a "down" class somewhere
// on the element or its ancestors.
const (
	priceAttr    = "data-price"
	ChangeSuffix = "_CHANGE"
	downClass    = "down"
)

// RawFieldMap maps a vendor field key to its raw, whitespace-collapsed text.
// Values may still contain thousands separators; stripping them is the
// consumer's job, not the parser's.
type RawFieldMap map[string]string

// Change is one change-indicator cell.
type Change struct {
	Value  string
	IsDown bool
}

// ChangeMap maps a change element id (field key + ChangeSuffix) to its cell.
type ChangeMap map[string]Change

var spaceRe = regexp.MustCompile(`\s+`)

// Markup extracts price fields and change indicators from an HTML document.
// Pure text extraction: no network, no mutation, and a page with no matching
// elements yields empty maps rather than an error — absence of data is the
// caller's concern.
func Markup(doc string) (RawFieldMap, ChangeMap) {
	fields := RawFieldMap{}
	changes := ChangeMap{}

	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return fields, changes
	}

	d.Find("[" + priceAttr + "]").Each(func(_ int, s *goquery.Selection) {
		key := strings.TrimSpace(s.AttrOr(priceAttr, ""))
		if key == "" {
			return
		}
		fields[key] = collapse(s.Text())
	})

	d.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id := s.AttrOr("id", "")
		if !strings.HasSuffix(id, ChangeSuffix) {
			return
		}
		text := collapse(s.Text())
		// Two independent down signals: a "down" class on the element or an
		// ancestor, or a leading minus. Either one wins; the vendor has been
		// seen using both.
		isDown := strings.HasPrefix(text, "-") || s.Closest("."+downClass).Length() > 0
		changes[id] = Change{Value: text, IsDown: isDown}
	})

	return fields, changes
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
