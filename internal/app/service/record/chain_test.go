package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/types"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func rec(seller, plan string, cents int64, start, end *time.Time) *models.SubscriptionRecord {
	return &models.SubscriptionRecord{
		UserID:       "user-1",
		BuyerName:    "Acme",
		SellerName:   seller,
		PlanName:     plan,
		Currency:     "USD",
		AmountCents:  cents,
		BillingCycle: types.BillingCycleMonthly,
		StartDate:    start,
		EndDate:      end,
	}
}

func TestGroupChains_ConsecutivePeriodsFormOneChain(t *testing.T) {
	chains := GroupChains([]*models.SubscriptionRecord{
		rec("Netflix", "Premium", 1599, day(2026, 1, 1), day(2026, 1, 31)),
		rec("Netflix", "Premium", 1599, day(2026, 2, 1), day(2026, 2, 28)),
		rec("Netflix", "Premium", 1599, day(2026, 3, 1), day(2026, 3, 31)),
	})
	require.Len(t, chains, 1)
	assert.Len(t, chains[0], 3)
	// Representative is the latest period.
	assert.Equal(t, day(2026, 3, 1), chains[0][2].StartDate)
}

func TestGroupChains_GapBoundary(t *testing.T) {
	tests := []struct {
		name       string
		nextStart  *time.Time
		wantChains int
	}{
		{name: "no gap", nextStart: day(2026, 2, 1), wantChains: 1},
		{name: "three day gap still joins", nextStart: day(2026, 2, 3), wantChains: 1},
		{name: "four day gap splits", nextStart: day(2026, 2, 4), wantChains: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chains := GroupChains([]*models.SubscriptionRecord{
				rec("Netflix", "Premium", 1599, day(2026, 1, 1), day(2026, 1, 31)),
				rec("Netflix", "Premium", 1599, tt.nextStart, day(2026, 2, 28)),
			})
			assert.Len(t, chains, tt.wantChains)
		})
	}
}

func TestGroupChains_DifferentIdentityNeverJoins(t *testing.T) {
	chains := GroupChains([]*models.SubscriptionRecord{
		rec("Netflix", "Premium", 1599, day(2026, 1, 1), day(2026, 1, 31)),
		rec("Netflix", "Basic", 1599, day(2026, 2, 1), day(2026, 2, 28)),
		rec("Netflix", "Premium", 1799, day(2026, 2, 1), day(2026, 2, 28)),
		rec("Spotify", "Premium", 1599, day(2026, 2, 1), day(2026, 2, 28)),
	})
	assert.Len(t, chains, 4)
}

func TestGroupChains_UnsortedInput(t *testing.T) {
	chains := GroupChains([]*models.SubscriptionRecord{
		rec("Netflix", "Premium", 1599, day(2026, 3, 1), day(2026, 3, 31)),
		rec("Netflix", "Premium", 1599, day(2026, 1, 1), day(2026, 1, 31)),
		rec("Netflix", "Premium", 1599, day(2026, 2, 1), day(2026, 2, 28)),
	})
	require.Len(t, chains, 1)
	require.Len(t, chains[0], 3)
	assert.Equal(t, day(2026, 1, 1), chains[0][0].StartDate)
	assert.Equal(t, day(2026, 3, 1), chains[0][2].StartDate)
}

func TestGroupChains_NilStartDateOpensOwnChain(t *testing.T) {
	chains := GroupChains([]*models.SubscriptionRecord{
		rec("Netflix", "Premium", 1599, nil, nil),
		rec("Netflix", "Premium", 1599, day(2026, 1, 1), day(2026, 1, 31)),
		rec("Netflix", "Premium", 1599, day(2026, 2, 1), day(2026, 2, 28)),
	})
	require.Len(t, chains, 2)
	assert.Len(t, chains[0], 1)
	assert.Nil(t, chains[0][0].StartDate)
	assert.Len(t, chains[1], 2)
}

func TestGroupChains_NilPreviousEndTreatedAsContinuous(t *testing.T) {
	chains := GroupChains([]*models.SubscriptionRecord{
		rec("Netflix", "Premium", 1599, day(2026, 1, 1), nil),
		rec("Netflix", "Premium", 1599, day(2026, 6, 1), day(2026, 6, 30)),
	})
	require.Len(t, chains, 1)
	assert.Len(t, chains[0], 2)
}

func TestGroupChains_GapComparesCalendarDaysAcrossZones(t *testing.T) {
	// End at the close of Jan 31 in UTC+12, next start early Feb 3 in UTC-11.
	// Calendar gap is three days, so the chain joins even though the raw
	// instants are almost four days apart.
	plus12 := time.FixedZone("UTC+12", 12*3600)
	minus11 := time.FixedZone("UTC-11", -11*3600)
	end := time.Date(2026, 1, 31, 23, 0, 0, 0, plus12)
	nextStart := time.Date(2026, 2, 3, 1, 0, 0, 0, minus11)

	chains := GroupChains([]*models.SubscriptionRecord{
		rec("Netflix", "Premium", 1599, day(2026, 1, 1), &end),
		rec("Netflix", "Premium", 1599, &nextStart, day(2026, 2, 28)),
	})
	require.Len(t, chains, 1)
	assert.Len(t, chains[0], 2)
}

func TestGroupChains_Empty(t *testing.T) {
	assert.Nil(t, GroupChains(nil))
	assert.Nil(t, GroupChains([]*models.SubscriptionRecord{}))
}
