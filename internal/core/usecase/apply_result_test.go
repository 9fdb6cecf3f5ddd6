package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Analogium/PriceWatch/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackedProduct(id int64, current, target string) domain.Product {
	return domain.Product{
		ID:                  id,
		UserID:              10,
		Name:                "Casque audio",
		URL:                 productURL,
		CurrentPrice:        price(current),
		TargetPrice:         price(target),
		CheckFrequencyHours: 24,
		IsAvailable:         true,
	}
}

func success(p string) domain.ScrapeOutcome {
	return domain.SuccessOutcome(domain.SiteFnac, domain.ScrapedProduct{Name: "Casque audio", Price: price(p)})
}

func TestApplyResult_PriceDropAtTarget(t *testing.T) {
	t.Parallel()

	product := trackedProduct(1, "100", "100")
	repo := newMemoryRepo(product)
	alerts := &alertSenderMock{}
	uc := NewApplyResultUseCase(repo, repo, alerts)

	alerted, err := uc.Execute(context.Background(), &product, success("95"))
	require.NoError(t, err)
	assert.True(t, alerted)

	saved := repo.product(1)
	assert.True(t, price("95").Equal(saved.CurrentPrice))
	assert.NotNil(t, saved.LastCheckedAt)
	assert.Len(t, repo.historyOf(1), 1)

	sent := alerts.alerts()
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@example.com", sent[0].Email)
	assert.True(t, price("95").Equal(sent[0].NewPrice))
	assert.True(t, price("100").Equal(sent[0].OldPrice))
	assert.Equal(t, productURL, sent[0].URL)
	assert.Equal(t, "Casque audio", sent[0].ProductName)
}

func TestApplyResult_SamePriceTwiceKeepsOneHistoryEntry(t *testing.T) {
	t.Parallel()

	product := trackedProduct(2, "120", "80")
	repo := newMemoryRepo(product)
	uc := NewApplyResultUseCase(repo, repo, &alertSenderMock{})

	for range 2 {
		p := repo.product(2)
		_, err := uc.Execute(context.Background(), &p, success("110"))
		require.NoError(t, err)
	}

	assert.Len(t, repo.historyOf(2), 1)
	assert.Equal(t, 2, repo.saves)
}

func TestApplyResult_AlertRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current string
		target  string
		scraped string
		alert   bool
	}{
		{name: "crosses target from above", current: "120", target: "100", scraped: "99", alert: true},
		{name: "drops but stays above target", current: "150", target: "100", scraped: "130", alert: false},
		{name: "already below target and drops further", current: "90", target: "100", scraped: "85", alert: false},
		{name: "far below target and drops further", current: "70", target: "100", scraped: "60", alert: false},
		{name: "drops from target", current: "100", target: "100", scraped: "95", alert: true},
		{name: "rises below target", current: "80", target: "100", scraped: "90", alert: false},
		{name: "unchanged at target", current: "100", target: "100", scraped: "100", alert: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			product := trackedProduct(3, tt.current, tt.target)
			repo := newMemoryRepo(product)
			alerts := &alertSenderMock{}
			uc := NewApplyResultUseCase(repo, repo, alerts)

			alerted, err := uc.Execute(context.Background(), &product, success(tt.scraped))
			require.NoError(t, err)
			assert.Equal(t, tt.alert, alerted)
			assert.Len(t, alerts.alerts(), map[bool]int{true: 1, false: 0}[tt.alert])
		})
	}
}

func TestApplyResult_Unavailable(t *testing.T) {
	t.Parallel()

	product := trackedProduct(4, "50", "40")
	repo := newMemoryRepo(product)
	uc := NewApplyResultUseCase(repo, repo, &alertSenderMock{})
	first := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return first }

	outcome := domain.UnavailableOutcome(domain.SiteFnac, &domain.HTTPStatusError{StatusCode: 404})
	alerted, err := uc.Execute(context.Background(), &product, outcome)
	require.NoError(t, err)
	assert.False(t, alerted)

	saved := repo.product(4)
	assert.False(t, saved.IsAvailable)
	require.NotNil(t, saved.UnavailableSince)
	assert.True(t, first.Equal(*saved.UnavailableSince))
	assert.True(t, price("50").Equal(saved.CurrentPrice))
	assert.Empty(t, repo.historyOf(4))

	uc.now = func() time.Time { return first.Add(24 * time.Hour) }
	_, err = uc.Execute(context.Background(), &saved, outcome)
	require.NoError(t, err)
	again := repo.product(4)
	assert.True(t, first.Equal(*again.UnavailableSince), "unavailable_since is set only on the transition")
	assert.True(t, first.Add(24*time.Hour).Equal(*again.LastCheckedAt))

	_, err = uc.Execute(context.Background(), &again, success("45"))
	require.NoError(t, err)
	restored := repo.product(4)
	assert.True(t, restored.IsAvailable)
	assert.Nil(t, restored.UnavailableSince)
}

func TestApplyResult_FailureLeavesProductUntouched(t *testing.T) {
	t.Parallel()

	product := trackedProduct(5, "70", "60")
	repo := newMemoryRepo(product)
	uc := NewApplyResultUseCase(repo, repo, &alertSenderMock{})

	alerted, err := uc.Execute(context.Background(), &product, domain.FailureOutcome(domain.SiteFnac, domain.ErrNetworkTimeout))
	require.NoError(t, err)
	assert.False(t, alerted)
	assert.Equal(t, 0, repo.saves)
	assert.Nil(t, repo.product(5).LastCheckedAt)
}

func TestApplyResult_AlertErrorsDoNotFailCheck(t *testing.T) {
	t.Parallel()

	product := trackedProduct(6, "100", "100")
	repo := newMemoryRepo(product)
	alerts := &alertSenderMock{SendFn: func(context.Context, domain.PriceAlert) error {
		return errors.New("broker unavailable")
	}}
	uc := NewApplyResultUseCase(repo, repo, alerts)

	alerted, err := uc.Execute(context.Background(), &product, success("90"))
	require.NoError(t, err)
	assert.False(t, alerted)
	assert.True(t, price("90").Equal(repo.product(6).CurrentPrice))
}

func TestApplyResult_SaveError(t *testing.T) {
	t.Parallel()

	product := trackedProduct(7, "100", "100")
	repo := newMemoryRepo(product)
	repo.SaveErr = errors.New("db down")
	alerts := &alertSenderMock{}
	uc := NewApplyResultUseCase(repo, repo, alerts)

	_, err := uc.Execute(context.Background(), &product, success("90"))
	assert.Error(t, err)
	assert.Empty(t, alerts.alerts(), "no alert without a persisted price")
}
