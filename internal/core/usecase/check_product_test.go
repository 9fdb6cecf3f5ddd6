package usecase

import (
	"context"
	"testing"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckProduct(t *testing.T) {
	t.Parallel()

	repo := newMemoryRepo(trackedProduct(1, "100", "100"))
	scraper := NewScrapeProductUseCase(ScrapeDeps{
		Detector:   fixedSite(domain.SiteFnac),
		Fetcher:    &fetcherMock{ScrapeFn: okScrape("95")},
		Identities: identityStub{},
	}, newTestRetry(&sleepRecorder{}), ScrapeConfig{})
	uc := NewCheckProductUseCase(repo, scraper, NewApplyResultUseCase(repo, repo, &alertSenderMock{}))

	t.Run("checks and applies", func(t *testing.T) {
		res, err := uc.Execute(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, res.Status)
		assert.Equal(t, domain.SiteFnac, res.Site)
		require.NotNil(t, res.Price)
		assert.True(t, price("95").Equal(*res.Price))
		assert.True(t, res.Alerted)
		assert.True(t, price("95").Equal(repo.product(1).CurrentPrice))
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := uc.Execute(context.Background(), 404)
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})
}
