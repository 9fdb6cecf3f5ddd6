package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Контейнеры основной цены Amazon в порядке приоритета
var amazonCorePriceContainers = []string{
	"#corePrice_feature_div",
	"#corePriceDisplay_desktop_feature_div",
	"#apex_desktop",
}

// Блоки с ценами сторонних продавцов и подписки, которые не являются ценой товара
var amazonIgnoredContainers = []string{
	"#aod-offer",
	"#mbc",
	"#snsAccordionRowMiddle",
	"#sns-base-price",
}

func newAmazonExtractor() Extractor {
	return &selectorExtractor{
		name: []textStrategy{text("#productTitle"), text("h1[id*=title]")},
		price: []textStrategy{
			amazonCorePrice,
			amazonOutside(amazonWholeFraction),
			amazonOutside(func(s *goquery.Selection) string { return s.Find(".a-price .a-offscreen").First().Text() }),
		},
		image: []textStrategy{
			attr("#landingImage", "data-old-hires", "src"),
			attr("#imgBlkFront", "src"),
		},
	}
}

// amazonCorePrice ищет цену только внутри контейнеров основной цены
func amazonCorePrice(doc *goquery.Document) string {
	for _, container := range amazonCorePriceContainers {
		sel := doc.Find(container).First()
		if sel.Length() == 0 {
			continue
		}
		if v := amazonWholeFraction(sel); v != "" {
			return v
		}
		if v := strings.TrimSpace(sel.Find(".a-price .a-offscreen").First().Text()); v != "" {
			return v
		}
	}
	return ""
}

// amazonWholeFraction склеивает ".a-price-whole" ("1 234,") и ".a-price-fraction" ("56") в "1234.56"
func amazonWholeFraction(sel *goquery.Selection) string {
	price := sel.Find(".a-price").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(".a-price-whole").Length() > 0
	}).First()
	if price.Length() == 0 {
		return ""
	}
	// в целой части все разделители тысячные, десятичный стоит в конце
	whole := digitsOnly(price.Find(".a-price-whole").First().Text())
	if whole == "" {
		return ""
	}
	fraction := digitsOnly(price.Find(".a-price-fraction").First().Text())
	if fraction == "" {
		return whole
	}
	return whole + "." + fraction
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// amazonOutside применяет стратегию к документу без блоков сторонних предложений
func amazonOutside(fn func(*goquery.Selection) string) textStrategy {
	return func(doc *goquery.Document) string {
		clone := goquery.CloneDocument(doc)
		clone.Find(strings.Join(amazonIgnoredContainers, ", ")).Remove()
		return fn(clone.Selection)
	}
}

func newFnacExtractor() Extractor {
	return &selectorExtractor{
		name:  []textStrategy{text(".f-productHeader-Title"), text("h1")},
		price: []textStrategy{text(".f-priceBox-price"), contentOrText("[itemprop=price]")},
		image: []textStrategy{image(".f-productVisuals-mainImage"), attr("meta[property='og:image']", "content")},
	}
}

func newDartyExtractor() Extractor {
	return &selectorExtractor{
		name:  []textStrategy{text(".product_title"), text("h1")},
		price: []textStrategy{text(".product_price"), contentOrText("[itemprop=price]")},
		image: []textStrategy{image(".product_image"), attr("meta[property='og:image']", "content")},
	}
}

func newCdiscountExtractor() Extractor {
	return &selectorExtractor{
		name:  []textStrategy{text("h1[itemprop=name]"), text("h1")},
		price: []textStrategy{text(".fpPrice"), attr("meta[itemprop=price]", "content")},
		image: []textStrategy{image("img[itemprop=image]"), attr("meta[property='og:image']", "content")},
	}
}

func newBoulangerExtractor() Extractor {
	return &selectorExtractor{
		name:  []textStrategy{text(".product-title"), text("h1[itemprop=name]")},
		price: []textStrategy{text(".price"), attr("meta[itemprop=price]", "content")},
		image: []textStrategy{image(".product-visual__image"), attr("meta[property='og:image']", "content")},
	}
}

func newLeclercExtractor() Extractor {
	return &selectorExtractor{
		name:  []textStrategy{text(".product-name"), text("h1[itemprop=name]")},
		price: []textStrategy{text(".product-price"), attr("meta[itemprop=price]", "content")},
		image: []textStrategy{image(".product-image"), attr("meta[property='og:image']", "content")},
	}
}

func newGenericExtractor() Extractor {
	return &selectorExtractor{
		name: []textStrategy{text("h1"), contentOrText("[itemprop=name]"), text("title")},
		price: []textStrategy{
			attr("meta[property='product:price:amount']", "content"),
			attr("meta[itemprop=price]", "content"),
			contentOrText("[itemprop=price]"),
			text(".price"),
		},
		image: []textStrategy{
			attr("meta[property='og:image']", "content"),
			attr("[itemprop=image]", "src", "content"),
		},
	}
}
