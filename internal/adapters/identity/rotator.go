package identity

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/Analogium/PriceWatch/internal/core/domain"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:122.0) Gecko/20100101 Firefox/122.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36 Edg/121.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

var defaultReferers = []string{"https://www.google.fr/"}

var siteReferers = map[domain.SiteTag][]string{
	domain.SiteAmazon:    {"https://www.google.fr/search?q=amazon", "https://www.google.fr/", "https://www.amazon.fr/"},
	domain.SiteFnac:      {"https://www.google.fr/search?q=fnac", "https://www.google.fr/", "https://www.fnac.com/"},
	domain.SiteCdiscount: {"https://www.google.fr/search?q=cdiscount", "https://www.google.fr/"},
	domain.SiteDarty:     {"https://www.google.fr/search?q=darty", "https://www.google.fr/"},
	domain.SiteBoulanger: {"https://www.google.fr/search?q=boulanger", "https://www.google.fr/"},
	domain.SiteLeclerc:   {"https://www.google.fr/search?q=leclerc", "https://www.google.fr/"},
}

// Accept-Encoding не задается: распаковкой занимается http.Transport
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "cross-site",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
}

// Config ротатора
type Config struct {
	// ProxyEnabled выключает прокси даже при непустом списке
	ProxyEnabled bool
	Proxies      []string
	// RandomProxy - случайный выбор вместо кругового
	RandomProxy bool
}

// Rotator выдает заголовки и прокси для каждого запроса, реализует port.IdentityProviderPort
type Rotator struct {
	mu           sync.Mutex
	proxies      []string
	next         int
	proxyEnabled bool
	randomProxy  bool
	intn         func(n int) int
}

// NewRotator создает ротатор. Пустые строки и повторы в списке прокси отбрасываются.
func NewRotator(cfg Config) *Rotator {
	r := &Rotator{
		proxyEnabled: cfg.ProxyEnabled,
		randomProxy:  cfg.RandomProxy,
		intn:         rand.IntN,
	}
	for _, proxy := range cfg.Proxies {
		r.AddProxy(proxy)
	}
	return r
}

// UserAgents возвращает копию пула User-Agent
func UserAgents() []string { return slices.Clone(userAgents) }

// Headers собирает заголовки запроса: полный браузерный набор или только User-Agent
func (r *Rotator) Headers(site domain.SiteTag, full bool) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	headers := map[string]string{"User-Agent": userAgents[r.intn(len(userAgents))]}
	if !full {
		return headers
	}
	for k, v := range browserHeaders {
		headers[k] = v
	}
	referers, ok := siteReferers[site]
	if !ok {
		referers = defaultReferers
	}
	headers["Referer"] = referers[r.intn(len(referers))]
	return headers
}

// Next выдает идентичность для очередного запроса
func (r *Rotator) Next(site domain.SiteTag, full bool) domain.Identity {
	headers := r.Headers(site, full)
	var proxy string
	if r.randomProxy {
		proxy = r.RandomProxy()
	} else {
		proxy = r.NextProxy()
	}
	return domain.Identity{Headers: headers, Proxy: proxy}
}

// ProxyEnabled - ротация включена и список прокси не пуст
func (r *Rotator) ProxyEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proxyEnabledLocked()
}

func (r *Rotator) proxyEnabledLocked() bool {
	return r.proxyEnabled && len(r.proxies) > 0
}

// NextProxy - следующий прокси по кругу, пустая строка если ротация выключена
func (r *Rotator) NextProxy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.proxyEnabledLocked() {
		return ""
	}
	r.next %= len(r.proxies)
	proxy := r.proxies[r.next]
	r.next = (r.next + 1) % len(r.proxies)
	return proxy
}

// RandomProxy - случайный прокси, пустая строка если ротация выключена
func (r *Rotator) RandomProxy() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.proxyEnabledLocked() {
		return ""
	}
	return r.proxies[r.intn(len(r.proxies))]
}

// AddProxy добавляет прокси, дубликаты игнорируются
func (r *Rotator) AddProxy(proxy string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if proxy == "" || slices.Contains(r.proxies, proxy) {
		return
	}
	r.proxies = append(r.proxies, proxy)
}

// RemoveProxy удаляет прокси после бана сайтом. Возвращает true, если прокси был в списке.
func (r *Rotator) RemoveProxy(proxy string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := slices.Index(r.proxies, proxy)
	if idx < 0 {
		return false
	}
	r.proxies = slices.Delete(r.proxies, idx, idx+1)
	if len(r.proxies) == 0 {
		r.next = 0
	} else if r.next > idx {
		r.next--
	}
	return true
}

// Proxies возвращает копию текущего списка
func (r *Rotator) Proxies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.proxies)
}
