package extractor

import (
	"strings"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Extractor превращает документ страницы товара в данные или сообщает, что данных нет
type Extractor interface {
	Extract(doc *goquery.Document) (domain.ScrapedProduct, bool)
}

// textStrategy возвращает кандидата в значение поля или пустую строку
type textStrategy func(doc *goquery.Document) string

// selectorExtractor перебирает стратегии по порядку, первая непустая побеждает
type selectorExtractor struct {
	name  []textStrategy
	price []textStrategy
	image []textStrategy
}

func (e *selectorExtractor) Extract(doc *goquery.Document) (domain.ScrapedProduct, bool) {
	if doc == nil {
		return domain.ScrapedProduct{}, false
	}
	name := firstText(doc, e.name)
	if name == "" {
		return domain.ScrapedProduct{}, false
	}
	price, ok := firstPrice(doc, e.price)
	if !ok {
		return domain.ScrapedProduct{}, false
	}
	return domain.ScrapedProduct{
		Name:  name,
		Price: price,
		Image: firstText(doc, e.image),
	}, true
}

func firstText(doc *goquery.Document, strategies []textStrategy) string {
	for _, s := range strategies {
		if v := cleanText(s(doc)); v != "" {
			return v
		}
	}
	return ""
}

func firstPrice(doc *goquery.Document, strategies []textStrategy) (decimal.Decimal, bool) {
	for _, s := range strategies {
		raw := s(doc)
		if raw == "" {
			continue
		}
		price, err := ParsePrice(raw)
		if err != nil || !price.IsPositive() {
			continue
		}
		return price, true
	}
	return decimal.Zero, false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// text берет текст первого элемента по селектору
func text(selector string) textStrategy {
	return func(doc *goquery.Document) string {
		return doc.Find(selector).First().Text()
	}
}

// attr берет первый непустой атрибут из списка у первого элемента по селектору
func attr(selector string, names ...string) textStrategy {
	return func(doc *goquery.Document) string {
		sel := doc.Find(selector).First()
		for _, n := range names {
			if v, ok := sel.Attr(n); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}
}

// contentOrText - значение атрибута content, а если его нет, текст элемента
func contentOrText(selector string) textStrategy {
	return func(doc *goquery.Document) string {
		sel := doc.Find(selector).First()
		if v, ok := sel.Attr("content"); ok && strings.TrimSpace(v) != "" {
			return v
		}
		return sel.Text()
	}
}

func image(selector string) textStrategy {
	return attr(selector, "src", "data-src", "content")
}

// Registry выбирает экстрактор по тегу сайта, неизвестные сайты и пустой результат
// сайта уходят в общий экстрактор
type Registry struct {
	sites   map[domain.SiteTag]Extractor
	generic Extractor
}

// NewRegistry создает реестр со всеми поддерживаемыми сайтами
func NewRegistry() *Registry {
	return &Registry{
		sites: map[domain.SiteTag]Extractor{
			domain.SiteAmazon:    newAmazonExtractor(),
			domain.SiteFnac:      newFnacExtractor(),
			domain.SiteDarty:     newDartyExtractor(),
			domain.SiteCdiscount: newCdiscountExtractor(),
			domain.SiteBoulanger: newBoulangerExtractor(),
			domain.SiteLeclerc:   newLeclercExtractor(),
		},
		generic: newGenericExtractor(),
	}
}

// Register добавляет или заменяет экстрактор сайта
func (r *Registry) Register(site domain.SiteTag, e Extractor) {
	r.sites[site] = e
}

// Extract извлекает данные экстрактором сайта с откатом на общий
func (r *Registry) Extract(doc *goquery.Document, site domain.SiteTag) (domain.ScrapedProduct, bool) {
	if e, ok := r.sites[site]; ok {
		if data, ok := e.Extract(doc); ok {
			return data, true
		}
	}
	return r.generic.Extract(doc)
}

// Parse проверяет недоступность и извлекает данные из HTML.
// Возвращает domain.ErrProductUnavailable или domain.ErrExtractionFailed.
func (r *Registry) Parse(doc *goquery.Document, site domain.SiteTag) (*domain.ScrapedProduct, error) {
	if IsUnavailable(doc, site) {
		return nil, domain.ErrProductUnavailable
	}
	data, ok := r.Extract(doc, site)
	if !ok {
		return nil, domain.ErrExtractionFailed
	}
	return &data, nil
}

// ParseHTML - то же, что Parse, для сырого HTML
func (r *Registry) ParseHTML(html string, site domain.SiteTag) (*domain.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, domain.ErrExtractionFailed
	}
	return r.Parse(doc, site)
}
