package record

import (
	"sort"
	"time"

	"github.com/fatflowers/subtrack/internal/models"
)

// maxChainGapDays is the largest gap between one period's end and the next
// period's start that still counts as the same subscription chain.
const maxChainGapDays = 3

// GroupChains splits one user's records into subscription chains: runs of
// periods with the same identity (seller, buyer, plan, currency, amount) and
// at most maxChainGapDays between consecutive periods. Input records must be
// decrypted. The last element of each chain is its representative.
func GroupChains(records []*models.SubscriptionRecord) [][]*models.SubscriptionRecord {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]*models.SubscriptionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.SellerName != b.SellerName {
			return a.SellerName < b.SellerName
		}
		if a.BuyerName != b.BuyerName {
			return a.BuyerName < b.BuyerName
		}
		if a.PlanName != b.PlanName {
			return a.PlanName < b.PlanName
		}
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		if a.AmountCents != b.AmountCents {
			return a.AmountCents < b.AmountCents
		}
		return beforeDate(a.StartDate, b.StartDate)
	})

	var chains [][]*models.SubscriptionRecord
	var current []*models.SubscriptionRecord
	for _, rec := range sorted {
		if len(current) > 0 && sameChainIdentity(current[len(current)-1], rec) && extendsChain(current[len(current)-1], rec) {
			current = append(current, rec)
			continue
		}
		if len(current) > 0 {
			chains = append(chains, current)
		}
		current = []*models.SubscriptionRecord{rec}
	}
	chains = append(chains, current)
	return chains
}

func sameChainIdentity(a, b *models.SubscriptionRecord) bool {
	return a.SellerName == b.SellerName &&
		a.BuyerName == b.BuyerName &&
		a.PlanName == b.PlanName &&
		a.Currency == b.Currency &&
		a.AmountCents == b.AmountCents
}

// extendsChain reports whether next continues the chain ending at prev. A
// record without a start date always sits in its own chain, on either side of
// the comparison; a previous period without an end date is treated as still
// running.
func extendsChain(prev, next *models.SubscriptionRecord) bool {
	if prev.StartDate == nil || next.StartDate == nil {
		return false
	}
	if prev.EndDate == nil {
		return true
	}
	gap := truncateDay(*next.StartDate).Sub(truncateDay(*prev.EndDate))
	return gap <= maxChainGapDays*24*time.Hour
}

// beforeDate orders nil dates first so undated records surface at the head of
// their identity group.
func beforeDate(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	return a.Before(*b)
}

// truncateDay maps a timestamp to its calendar day. Days are compared by
// their wall-clock date regardless of the zone the timestamp carries, so the
// truncated values all live in UTC.
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
