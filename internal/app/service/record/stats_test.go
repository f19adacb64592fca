package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/types"
)

func cycleRec(seller string, cycle types.BillingCycle, currency string, cents int64, end *time.Time) *models.SubscriptionRecord {
	r := rec(seller, "Default", cents, day(2026, 1, 1), end)
	r.BillingCycle = cycle
	r.Currency = currency
	return r
}

func TestBuildStats_CycleMultipliers(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	farOut := day(2027, 12, 31)

	chains := GroupChains([]*models.SubscriptionRecord{
		cycleRec("Netflix", types.BillingCycleMonthly, "USD", 1599, farOut),
		cycleRec("AWS", types.BillingCycleQuarterly, "USD", 30000, farOut),
		cycleRec("Domain", types.BillingCycleYearly, "USD", 1200, farOut),
		cycleRec("Udemy", types.BillingCycleOneTime, "USD", 9999, farOut),
	})
	got := buildStats(chains, today)

	require.Len(t, got.ByCurrency, 1)
	usd := got.ByCurrency[0]
	assert.Equal(t, "USD", usd.Currency)
	// 1599*12 + 30000*4 + 1200*1; one-time excluded.
	assert.Equal(t, int64(19188+120000+1200), usd.AnnualCostCents)
	assert.Equal(t, int64(140388/12), usd.MonthlyAvgCents)
	assert.Equal(t, 4, usd.ChainCount)

	assert.Equal(t, 4, got.TotalChains)
	assert.Equal(t, 4, got.ActiveChains)
	assert.Equal(t, map[types.BillingCycle]int{
		types.BillingCycleMonthly:   1,
		types.BillingCycleQuarterly: 1,
		types.BillingCycleYearly:    1,
		types.BillingCycleOneTime:   1,
	}, got.ByBillingCycle)
}

func TestBuildStats_ExpiredChainsExcluded(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	chains := GroupChains([]*models.SubscriptionRecord{
		cycleRec("Netflix", types.BillingCycleMonthly, "USD", 1599, day(2027, 12, 31)),
		cycleRec("OldTool", types.BillingCycleMonthly, "USD", 5000, day(2026, 1, 31)),
	})
	got := buildStats(chains, today)

	assert.Equal(t, 2, got.TotalChains)
	assert.Equal(t, 1, got.ActiveChains)
	assert.Equal(t, 0, got.UpcomingChains)
	require.Len(t, got.ByCurrency, 1)
	assert.Equal(t, int64(1599*12), got.ByCurrency[0].AnnualCostCents)
}

func TestBuildStats_UpcomingChainsIncluded(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	chains := GroupChains([]*models.SubscriptionRecord{
		cycleRec("Netflix", types.BillingCycleMonthly, "USD", 1599, day(2026, 9, 2)),
	})
	got := buildStats(chains, today)

	assert.Equal(t, 1, got.UpcomingChains)
	require.Len(t, got.ByCurrency, 1)
	assert.Equal(t, int64(1599*12), got.ByCurrency[0].AnnualCostCents)
}

func TestBuildStats_CurrencySeparationAndOrder(t *testing.T) {
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	farOut := day(2027, 12, 31)

	chains := GroupChains([]*models.SubscriptionRecord{
		cycleRec("Spotify", types.BillingCycleMonthly, "USD", 999, farOut),
		cycleRec("Deezer", types.BillingCycleMonthly, "EUR", 1099, farOut),
	})
	got := buildStats(chains, today)

	require.Len(t, got.ByCurrency, 2)
	assert.Equal(t, "EUR", got.ByCurrency[0].Currency)
	assert.Equal(t, "USD", got.ByCurrency[1].Currency)
	assert.Equal(t, int64(1099*12), got.ByCurrency[0].AnnualCostCents)
	assert.Equal(t, int64(999*12), got.ByCurrency[1].AnnualCostCents)
}

func TestBuildStats_Empty(t *testing.T) {
	got := buildStats(nil, time.Now())
	assert.Equal(t, 0, got.TotalChains)
	assert.Empty(t, got.ByCurrency)
}
