package extractor

import (
	"strings"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

type sitePattern struct {
	site     domain.SiteTag
	patterns []string
}

// sitePatterns - подстроки хоста по сайтам. Шаблоны в нижнем регистре и не пересекаются.
var sitePatterns = []sitePattern{
	{site: domain.SiteAmazon, patterns: []string{"amazon.fr", "amazon.com", "amazon.de", "amazon.co.uk", "amazon.it", "amazon.es"}},
	{site: domain.SiteFnac, patterns: []string{"fnac.com", "fnac.fr"}},
	{site: domain.SiteDarty, patterns: []string{"darty.com"}},
	{site: domain.SiteCdiscount, patterns: []string{"cdiscount.com"}},
	{site: domain.SiteBoulanger, patterns: []string{"boulanger.com", "boulanger.fr"}},
	{site: domain.SiteLeclerc, patterns: []string{"e.leclerc", "e-leclerc.fr", "e-leclerc.com"}},
}

// Detector реализует port.SiteDetectorPort
type Detector struct{}

func (Detector) Detect(rawURL string) domain.SiteTag { return DetectSite(rawURL) }

// DetectSite определяет магазин по URL без учета регистра
func DetectSite(rawURL string) domain.SiteTag {
	host := normalizeHost(rawURL)
	if host == "" {
		return domain.SiteUnknown
	}
	for _, sp := range sitePatterns {
		for _, pattern := range sp.patterns {
			if strings.Contains(host, pattern) {
				return sp.site
			}
		}
	}
	return domain.SiteUnknown
}

// normalizeHost оставляет только хост: без схемы, www., порта, пути и учетных данных
func normalizeHost(rawURL string) string {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}

// SupportedSites возвращает известные сайты в порядке таблицы
func SupportedSites() []domain.SiteTag {
	sites := make([]domain.SiteTag, 0, len(sitePatterns))
	for _, sp := range sitePatterns {
		sites = append(sites, sp.site)
	}
	return sites
}
