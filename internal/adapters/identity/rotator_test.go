package identity

import (
	"testing"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAgentPool(t *testing.T) {
	t.Parallel()

	agents := UserAgents()
	assert.Len(t, agents, 15)
	seen := make(map[string]bool)
	for _, ua := range agents {
		assert.Contains(t, ua, "Mozilla/5.0")
		assert.False(t, seen[ua], "duplicate user agent %s", ua)
		seen[ua] = true
	}
}

func TestRotator_Headers(t *testing.T) {
	t.Parallel()

	r := NewRotator(Config{})

	bare := r.Headers(domain.SiteAmazon, false)
	require.Len(t, bare, 1)
	assert.Contains(t, UserAgents(), bare["User-Agent"])

	full := r.Headers(domain.SiteFnac, true)
	assert.Equal(t, "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7", full["Accept-Language"])
	assert.Equal(t, "1", full["DNT"])
	assert.Equal(t, "navigate", full["Sec-Fetch-Mode"])
	assert.Contains(t, siteReferers[domain.SiteFnac], full["Referer"])
	assert.NotContains(t, full, "Accept-Encoding")

	unknown := r.Headers(domain.SiteUnknown, true)
	assert.Equal(t, "https://www.google.fr/", unknown["Referer"])
}

func TestRotator_UserAgentVaries(t *testing.T) {
	t.Parallel()

	r := NewRotator(Config{})
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		seen[r.Next(domain.SiteDarty, true).UserAgent()] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRotator_RoundRobinProxy(t *testing.T) {
	t.Parallel()

	r := NewRotator(Config{ProxyEnabled: true, Proxies: []string{"http://p1:8080", "http://p2:8080", "http://p3:8080"}})
	got := []string{r.NextProxy(), r.NextProxy(), r.NextProxy(), r.NextProxy()}
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080", "http://p3:8080", "http://p1:8080"}, got)

	assert.Equal(t, "http://p2:8080", r.Next(domain.SiteAmazon, false).Proxy)
}

func TestRotator_RandomProxy(t *testing.T) {
	t.Parallel()

	proxies := []string{"http://p1:8080", "http://p2:8080"}
	r := NewRotator(Config{ProxyEnabled: true, Proxies: proxies, RandomProxy: true})
	for i := 0; i < 20; i++ {
		assert.Contains(t, proxies, r.Next(domain.SiteAmazon, true).Proxy)
	}
}

func TestRotator_DisabledProxy(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewRotator(Config{ProxyEnabled: true}).NextProxy(), "empty pool disables rotation")
	assert.Empty(t, NewRotator(Config{ProxyEnabled: true}).RandomProxy())

	r := NewRotator(Config{ProxyEnabled: false, Proxies: []string{"http://p1:8080"}})
	assert.False(t, r.ProxyEnabled())
	assert.Empty(t, r.Next(domain.SiteFnac, true).Proxy)
}

func TestRotator_AddRemoveProxy(t *testing.T) {
	t.Parallel()

	r := NewRotator(Config{ProxyEnabled: true})
	assert.False(t, r.ProxyEnabled())

	r.AddProxy("http://p1:8080")
	r.AddProxy("http://p1:8080")
	r.AddProxy("http://p2:8080")
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, r.Proxies())
	assert.True(t, r.ProxyEnabled())

	assert.Equal(t, "http://p1:8080", r.NextProxy())
	assert.True(t, r.RemoveProxy("http://p1:8080"))
	assert.False(t, r.RemoveProxy("http://p1:8080"))
	assert.Equal(t, "http://p2:8080", r.NextProxy())

	assert.True(t, r.RemoveProxy("http://p2:8080"))
	assert.Empty(t, r.NextProxy())
}

func TestNewRotator_NormalizesProxyList(t *testing.T) {
	t.Parallel()

	r := NewRotator(Config{
		ProxyEnabled: true,
		Proxies:      []string{"http://p1:8080", "", "http://p2:8080", "http://p1:8080"},
	})
	assert.Equal(t, []string{"http://p1:8080", "http://p2:8080"}, r.Proxies())
}
