package extractor

import (
	"strings"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/PuerkitoBio/goquery"
)

// unavailablePhrases - признаки снятого с продажи товара на французском и английском
var unavailablePhrases = []string{
	"indisponible",
	"rupture de stock",
	"n'est plus disponible",
	"plus disponible",
	"épuisé",
	"out of stock",
	"no longer available",
	"currently unavailable",
}

type availabilityCheck struct {
	selector string
	// present - само наличие элемента означает недоступность
	present bool
}

// Структурные признаки по сайтам, проверяются раньше текста страницы
var siteAvailabilityChecks = map[domain.SiteTag][]availabilityCheck{
	domain.SiteAmazon: {
		{selector: "#outOfStock", present: true},
		{selector: "#availability"},
	},
	domain.SiteFnac:      {{selector: ".f-buyBox-availabilityStatus-unavailable", present: true}},
	domain.SiteDarty:     {{selector: ".product_unavailable", present: true}},
	domain.SiteCdiscount: {{selector: ".fpNoStock", present: true}},
	domain.SiteBoulanger: {{selector: ".product-unavailable", present: true}},
	domain.SiteLeclerc:   {{selector: ".product-unavailable", present: true}},
}

// IsUnavailable сообщает, что страница описывает недоступный товар
func IsUnavailable(doc *goquery.Document, site domain.SiteTag) bool {
	if doc == nil {
		return false
	}
	for _, check := range siteAvailabilityChecks[site] {
		sel := doc.Find(check.selector)
		if sel.Length() == 0 {
			continue
		}
		if check.present || containsPhrase(sel.Text()) {
			return true
		}
	}
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return containsPhrase(body.Text())
}

func containsPhrase(s string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	for _, phrase := range unavailablePhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}
