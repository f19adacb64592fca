package types

type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
	BillingCycleOneTime   BillingCycle = "one-time"
)

// Valid reports whether the cycle is one of the supported values.
func (c BillingCycle) Valid() bool {
	switch c {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly, BillingCycleOneTime:
		return true
	}
	return false
}

// ChainStatus is the derived display status of a subscription chain.
type ChainStatus string

const (
	ChainStatusActive   ChainStatus = "active"
	ChainStatusUpcoming ChainStatus = "upcoming"
	ChainStatusExpired  ChainStatus = "expired"
)

// MatchType records how a raw subscription fact was resolved to its
// canonical identity.
type MatchType string

const (
	MatchTypeExact MatchType = "exact"
	MatchTypeFuzzy MatchType = "fuzzy"
)
