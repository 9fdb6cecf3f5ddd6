package extractor

import (
	"strings"
	"testing"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestDetectSite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want domain.SiteTag
	}{
		{url: "https://www.amazon.fr/dp/B08N5WRWNW", want: domain.SiteAmazon},
		{url: "HTTPS://WWW.AMAZON.CO.UK/dp/B08", want: domain.SiteAmazon},
		{url: "amazon.de/gp/product/1", want: domain.SiteAmazon},
		{url: "https://www.fnac.com/a15000/Casque", want: domain.SiteFnac},
		{url: "https://www.darty.com/nav/achat/1.html", want: domain.SiteDarty},
		{url: "https://www.cdiscount.com/f-1.html", want: domain.SiteCdiscount},
		{url: "https://www.boulanger.com/ref/1", want: domain.SiteBoulanger},
		{url: "https://www.e.leclerc/fp/1", want: domain.SiteLeclerc},
		{url: "https://www.e-leclerc.fr/p/1", want: domain.SiteLeclerc},
		{url: "https://shop.example.org/item/1", want: domain.SiteUnknown},
		{url: "https://example.org/?ref=amazon.fr", want: domain.SiteUnknown},
		{url: "", want: domain.SiteUnknown},
		{url: "::::", want: domain.SiteUnknown},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DetectSite(tt.url))
			assert.Equal(t, tt.want, Detector{}.Detect(tt.url))
		})
	}
}

func TestSitePatterns_NoOverlap(t *testing.T) {
	t.Parallel()

	seen := make(map[string]domain.SiteTag)
	for _, sp := range sitePatterns {
		for _, pattern := range sp.patterns {
			assert.Equal(t, strings.ToLower(pattern), pattern, "patterns must be lowercase")
			if owner, ok := seen[pattern]; ok {
				t.Fatalf("pattern %q used by %s and %s", pattern, owner, sp.site)
			}
			seen[pattern] = sp.site
		}
	}

	// шаблон одного сайта не должен находить другой сайт
	for _, sp := range sitePatterns {
		for _, pattern := range sp.patterns {
			assert.Equal(t, sp.site, DetectSite("https://www."+pattern+"/x"), pattern)
		}
	}
	assert.Len(t, SupportedSites(), 6)
}
