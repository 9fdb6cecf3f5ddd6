package sitefetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Analogium/PriceWatch/internal/adapters/extractor"
	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productPage = `<html><head><title>Lampe</title>
<meta property="product:price:amount" content="24.50">
<meta property="og:image" content="https://shop/lampe.jpg"></head>
<body><h1>Lampe de bureau</h1><p>En stock</p></body></html>`

func newTestServer(t *testing.T, lastUA *atomic.Value) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/product", func(w http.ResponseWriter, r *http.Request) {
		if lastUA != nil {
			lastUA.Store(r.Header.Get("User-Agent") + "|" + r.Header.Get("Accept-Language"))
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(productPage))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	mux.HandleFunc("/soldout", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Lampe</h1><p>Ce produit n'est plus disponible</p></body></html>`))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div id="captcha"></div></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAdapter(t *testing.T, timeout time.Duration) *Adapter {
	t.Helper()
	a, err := NewAdapter(Config{RequestTimeout: timeout, Parallelism: 4}, extractor.NewRegistry(), nil)
	require.NoError(t, err)
	return a
}

func TestAdapter_Scrape(t *testing.T) {
	t.Parallel()

	var seen atomic.Value
	srv := newTestServer(t, &seen)
	a := newTestAdapter(t, 5*time.Second)

	identity := domain.Identity{Headers: map[string]string{
		"User-Agent":      "Mozilla/5.0 test",
		"Accept-Language": "fr-FR,fr;q=0.9",
	}}
	data, err := a.Scrape(context.Background(), srv.URL+"/product", domain.SiteUnknown, identity)
	require.NoError(t, err)
	assert.Equal(t, "Lampe de bureau", data.Name)
	assert.True(t, decimal.RequireFromString("24.5").Equal(data.Price))
	assert.Equal(t, "https://shop/lampe.jpg", data.Image)
	assert.Equal(t, "Mozilla/5.0 test|fr-FR,fr;q=0.9", seen.Load())
}

func TestAdapter_ScrapeErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, nil)
	a := newTestAdapter(t, 300*time.Millisecond)

	tests := []struct {
		path  string
		check func(t *testing.T, err error)
	}{
		{path: "/gone", check: func(t *testing.T, err error) {
			statusErr, ok := domain.AsHTTPStatus(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		}},
		{path: "/blocked", check: func(t *testing.T, err error) {
			statusErr, ok := domain.AsHTTPStatus(err)
			require.True(t, ok)
			assert.True(t, statusErr.IsForbidden())
		}},
		{path: "/broken", check: func(t *testing.T, err error) {
			statusErr, ok := domain.AsHTTPStatus(err)
			require.True(t, ok)
			assert.True(t, statusErr.IsServerError())
		}},
		{path: "/slow", check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrNetworkTimeout)
		}},
		{path: "/soldout", check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrProductUnavailable)
		}},
		{path: "/empty", check: func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrExtractionFailed)
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			data, err := a.Scrape(context.Background(), srv.URL+tt.path, domain.SiteUnknown, domain.Identity{})
			assert.Nil(t, data)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAdapter_InvalidProxy(t *testing.T) {
	t.Parallel()

	a := newTestAdapter(t, time.Second)
	_, err := a.Scrape(context.Background(), "http://127.0.0.1/x", domain.SiteUnknown, domain.Identity{Proxy: "::bad"})
	assert.Error(t, err)
}

// concurrencyTracker считает одновременные запросы и запоминает максимум
type concurrencyTracker struct {
	active atomic.Int32
	peak   atomic.Int32
}

func (c *concurrencyTracker) handler(hold time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := c.active.Add(1)
		defer c.active.Add(-1)
		for {
			peak := c.peak.Load()
			if n <= peak || c.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		time.Sleep(hold)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(productPage))
	}
}

func scrapeConcurrently(t *testing.T, a *Adapter, urls []string) {
	t.Helper()
	var wg sync.WaitGroup
	errs := make([]error, len(urls))
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			_, errs[i] = a.Scrape(context.Background(), u, domain.SiteUnknown, domain.Identity{})
		}(i, u)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestAdapter_ParallelismIsPerHost(t *testing.T) {
	t.Parallel()

	t.Run("distinct hosts do not share slots", func(t *testing.T) {
		t.Parallel()
		tracker := &concurrencyTracker{}
		urls := make([]string, 0, 5)
		for range 5 {
			srv := httptest.NewServer(tracker.handler(300 * time.Millisecond))
			t.Cleanup(srv.Close)
			urls = append(urls, srv.URL+"/product")
		}
		a, err := NewAdapter(Config{RequestTimeout: 5 * time.Second, Parallelism: 2}, extractor.NewRegistry(), nil)
		require.NoError(t, err)

		scrapeConcurrently(t, a, urls)
		assert.Greater(t, tracker.peak.Load(), int32(2))
	})

	t.Run("one host is capped", func(t *testing.T) {
		t.Parallel()
		tracker := &concurrencyTracker{}
		srv := httptest.NewServer(tracker.handler(100 * time.Millisecond))
		t.Cleanup(srv.Close)
		urls := make([]string, 5)
		for i := range urls {
			urls[i] = srv.URL + "/product"
		}
		a, err := NewAdapter(Config{RequestTimeout: 5 * time.Second, Parallelism: 2}, extractor.NewRegistry(), nil)
		require.NoError(t, err)

		scrapeConcurrently(t, a, urls)
		assert.LessOrEqual(t, tracker.peak.Load(), int32(2))
		assert.Positive(t, tracker.peak.Load())
	})
}

type proxyBannerMock struct {
	mu     sync.Mutex
	banned []string
}

func (m *proxyBannerMock) RemoveProxy(proxy string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned = append(m.banned, proxy)
	return true
}

func (m *proxyBannerMock) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.banned...)
}

func TestAdapter_BansProxyOnForbidden(t *testing.T) {
	t.Parallel()

	// прокси-сервер отвечает за сайт; запрос к http-странице идет на него с абсолютным URI
	newProxy := func(status int) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(status), status)
		}))
		t.Cleanup(srv.Close)
		return srv
	}
	forbidden := newProxy(http.StatusForbidden)
	notFound := newProxy(http.StatusNotFound)
	direct := newTestServer(t, nil)

	tests := []struct {
		name   string
		url    string
		proxy  string
		banned []string
	}{
		{name: "403 through proxy", url: "http://shop.example/product", proxy: forbidden.URL, banned: []string{forbidden.URL}},
		{name: "404 through proxy", url: "http://shop.example/product", proxy: notFound.URL, banned: nil},
		{name: "403 without proxy", url: direct.URL + "/blocked", proxy: "", banned: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			banner := &proxyBannerMock{}
			a, err := NewAdapter(Config{RequestTimeout: 2 * time.Second}, extractor.NewRegistry(), banner)
			require.NoError(t, err)

			_, err = a.Scrape(context.Background(), tt.url, domain.SiteUnknown, domain.Identity{Proxy: tt.proxy})
			_, ok := domain.AsHTTPStatus(err)
			require.True(t, ok, "unexpected error: %v", err)
			assert.Equal(t, tt.banned, banner.calls())
		})
	}
}

func TestNewAdapter_RequiresRegistry(t *testing.T) {
	t.Parallel()
	_, err := NewAdapter(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestSiteLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewSiteLimiter(20, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx, domain.SiteAmazon))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	// у другого сайта свой бюджет
	start = time.Now()
	require.NoError(t, limiter.Wait(ctx, domain.SiteFnac))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, limiter.Wait(cancelled, domain.SiteAmazon))

	unlimited := NewSiteLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Wait(ctx, domain.SiteDarty))
	}
}
