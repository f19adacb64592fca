package record

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/types"
)

// CurrencyStats is the projected yearly spend in one currency across the
// user's live chains.
type CurrencyStats struct {
	Currency        string `json:"currency"`
	AnnualCostCents int64  `json:"annual_cost_cents"`
	MonthlyAvgCents int64  `json:"monthly_avg_cents"`
	ChainCount      int    `json:"chain_count"`
}

// StatsResult summarizes the user's live subscriptions.
type StatsResult struct {
	TotalChains    int                        `json:"total_chains"`
	ActiveChains   int                        `json:"active_chains"`
	UpcomingChains int                        `json:"upcoming_chains"`
	ByCurrency     []*CurrencyStats           `json:"by_currency"`
	ByBillingCycle map[types.BillingCycle]int `json:"by_billing_cycle"`
}

// annualMultiplier projects one period's amount to a yearly cost. One-time
// purchases carry no recurring cost.
func annualMultiplier(cycle types.BillingCycle) int64 {
	switch cycle {
	case types.BillingCycleMonthly:
		return 12
	case types.BillingCycleQuarterly:
		return 4
	case types.BillingCycleYearly:
		return 1
	default:
		return 0
	}
}

// Stats computes spend projections over active and upcoming chains only;
// expired chains cost nothing going forward.
func (s *Service) Stats(ctx context.Context, userID string) (*StatsResult, error) {
	var recs []*models.SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		return nil, err
	}
	for _, rec := range recs {
		s.decryptRecord(ctx, rec)
	}
	return buildStats(GroupChains(recs), time.Now()), nil
}

func buildStats(chains [][]*models.SubscriptionRecord, today time.Time) *StatsResult {
	result := &StatsResult{
		TotalChains:    len(chains),
		ByBillingCycle: map[types.BillingCycle]int{},
	}

	live := lo.Filter(chains, func(chain []*models.SubscriptionRecord, _ int) bool {
		switch Classify(chain[len(chain)-1], today).Status {
		case types.ChainStatusActive:
			result.ActiveChains++
			return true
		case types.ChainStatusUpcoming:
			result.UpcomingChains++
			return true
		default:
			return false
		}
	})

	byCurrency := lo.GroupBy(live, func(chain []*models.SubscriptionRecord) string {
		return chain[len(chain)-1].Currency
	})

	for currency, group := range byCurrency {
		cs := &CurrencyStats{Currency: currency, ChainCount: len(group)}
		for _, chain := range group {
			rep := chain[len(chain)-1]
			cs.AnnualCostCents += rep.AmountCents * annualMultiplier(rep.BillingCycle)
		}
		cs.MonthlyAvgCents = cs.AnnualCostCents / 12
		result.ByCurrency = append(result.ByCurrency, cs)
	}
	// Stable output order for API consumers.
	sort.Slice(result.ByCurrency, func(i, j int) bool {
		return result.ByCurrency[i].Currency < result.ByCurrency[j].Currency
	})

	for _, chain := range live {
		result.ByBillingCycle[chain[len(chain)-1].BillingCycle]++
	}

	return result
}
