package extractor

import (
	"strings"
	"testing"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

const amazonPage = `<html><body>
<span id="productTitle">  Casque Bluetooth  Sony WH-1000XM4 </span>
<div id="mbc"><span class="a-price"><span class="a-offscreen">9,99 €</span><span class="a-price-whole">9,</span><span class="a-price-fraction">99</span></span></div>
<div id="corePrice_feature_div">
  <span class="a-price"><span class="a-offscreen">249,00 €</span><span class="a-price-whole">249<span class="a-price-decimal">,</span></span><span class="a-price-fraction">00</span></span>
</div>
<div id="snsAccordionRowMiddle"><span class="a-price"><span class="a-price-whole">199,</span><span class="a-price-fraction">00</span></span></div>
<img id="landingImage" src="https://m.media-amazon.com/small.jpg" data-old-hires="https://m.media-amazon.com/large.jpg">
</body></html>`

func TestAmazon_PrefersCorePriceContainer(t *testing.T) {
	t.Parallel()

	data, ok := NewRegistry().Extract(mustDoc(t, amazonPage), domain.SiteAmazon)
	require.True(t, ok)
	assert.Equal(t, "Casque Bluetooth Sony WH-1000XM4", data.Name)
	assert.True(t, decimal.RequireFromString("249").Equal(data.Price), "got %s", data.Price)
	assert.Equal(t, "https://m.media-amazon.com/large.jpg", data.Image)
}

func TestAmazon_WholeFractionOutsideIgnoredBlocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		whole    string
		fraction string
		want     string
	}{
		{name: "french", whole: "14,", fraction: "34", want: "14.34"},
		{name: "thousands", whole: "1 234,", fraction: "56", want: "1234.56"},
		{name: "english thousands", whole: "1,234.", fraction: "56", want: "1234.56"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			html := `<html><body><span id="productTitle">Livre</span>
<div id="aod-offer"><span class="a-price"><span class="a-price-whole">1,</span><span class="a-price-fraction">00</span></span></div>
<div id="ppd"><span class="a-price"><span class="a-price-whole">` + tt.whole + `</span><span class="a-price-fraction">` + tt.fraction + `</span></span></div>
</body></html>`
			data, ok := NewRegistry().Extract(mustDoc(t, html), domain.SiteAmazon)
			require.True(t, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(data.Price), "got %s", data.Price)
		})
	}
}

func TestSiteExtractors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		site  domain.SiteTag
		html  string
		name  string
		price string
		image string
	}{
		{
			site:  domain.SiteFnac,
			html:  `<h1 class="f-productHeader-Title">Apple AirPods Pro</h1><span class="f-priceBox-price">279,99 €</span><img class="f-productVisuals-mainImage" src="https://static.fnac/1.jpg">`,
			name:  "Apple AirPods Pro",
			price: "279.99",
			image: "https://static.fnac/1.jpg",
		},
		{
			site:  domain.SiteDarty,
			html:  `<h1 class="product_title">Lave-linge</h1><div class="product_price">449€</div><img class="product_image" data-src="https://darty/img.jpg">`,
			name:  "Lave-linge",
			price: "449",
			image: "https://darty/img.jpg",
		},
		{
			site:  domain.SiteCdiscount,
			html:  `<h1 itemprop="name">TV 55"</h1><meta itemprop="price" content="399.99"><img itemprop="image" src="https://cdiscount/tv.jpg">`,
			name:  `TV 55"`,
			price: "399.99",
			image: "https://cdiscount/tv.jpg",
		},
		{
			site:  domain.SiteBoulanger,
			html:  `<h1 class="product-title">Aspirateur</h1><p class="price">199,90 €</p><meta property="og:image" content="https://boulanger/a.jpg">`,
			name:  "Aspirateur",
			price: "199.90",
			image: "https://boulanger/a.jpg",
		},
		{
			site:  domain.SiteLeclerc,
			html:  `<h1 class="product-name">Cafetière</h1><div class="product-price">39,90</div><img class="product-image" src="https://leclerc/c.jpg">`,
			name:  "Cafetière",
			price: "39.90",
			image: "https://leclerc/c.jpg",
		},
	}

	registry := NewRegistry()
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.site), func(t *testing.T) {
			t.Parallel()
			data, ok := registry.Extract(mustDoc(t, "<html><body>"+tt.html+"</body></html>"), tt.site)
			require.True(t, ok)
			assert.Equal(t, tt.name, data.Name)
			assert.True(t, decimal.RequireFromString(tt.price).Equal(data.Price), "got %s", data.Price)
			assert.Equal(t, tt.image, data.Image)
		})
	}
}

func TestGenericExtractor(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Shop - Lampe</title>
<meta property="product:price:amount" content="24.50">
<meta property="og:image" content="https://shop/lampe.jpg"></head>
<body><h1>Lampe de bureau</h1></body></html>`

	data, ok := NewRegistry().Extract(mustDoc(t, html), domain.SiteUnknown)
	require.True(t, ok)
	assert.Equal(t, "Lampe de bureau", data.Name)
	assert.True(t, decimal.RequireFromString("24.5").Equal(data.Price))
	assert.Equal(t, "https://shop/lampe.jpg", data.Image)
}

func TestRegistry_FallsBackToGeneric(t *testing.T) {
	t.Parallel()

	// разметка сайта поменялась, но метаданные остались
	html := `<html><head><title>Fnac - Casque</title><meta itemprop="price" content="59,99"></head><body></body></html>`
	data, ok := NewRegistry().Extract(mustDoc(t, html), domain.SiteFnac)
	require.True(t, ok)
	assert.Equal(t, "Fnac - Casque", data.Name)
	assert.True(t, decimal.RequireFromString("59.99").Equal(data.Price))
}

func TestRegistry_NoData(t *testing.T) {
	t.Parallel()

	_, ok := NewRegistry().Extract(mustDoc(t, `<html><body><h1>Captcha</h1></body></html>`), domain.SiteAmazon)
	assert.False(t, ok)

	_, err := NewRegistry().ParseHTML(`<html><body><p>nothing here</p></body></html>`, domain.SiteDarty)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestRegistry_ParseHTML(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	data, err := registry.ParseHTML(amazonPage, domain.SiteAmazon)
	require.NoError(t, err)
	assert.Equal(t, "Casque Bluetooth Sony WH-1000XM4", data.Name)

	_, err = registry.ParseHTML(`<html><body><h1 class="product_title">TV</h1><div class="product_price">100</div><p>Produit en rupture de stock</p></body></html>`, domain.SiteDarty)
	assert.ErrorIs(t, err, domain.ErrProductUnavailable, "unavailability is checked before extraction")
}

type stubExtractor struct {
	ExtractFn func(doc *goquery.Document) (domain.ScrapedProduct, bool)
}

func (s *stubExtractor) Extract(doc *goquery.Document) (domain.ScrapedProduct, bool) {
	return s.ExtractFn(doc)
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("ikea", &stubExtractor{ExtractFn: func(*goquery.Document) (domain.ScrapedProduct, bool) {
		return domain.ScrapedProduct{Name: "Billy", Price: decimal.NewFromInt(59)}, true
	}})

	data, ok := registry.Extract(mustDoc(t, "<html></html>"), "ikea")
	require.True(t, ok)
	assert.Equal(t, "Billy", data.Name)
}
