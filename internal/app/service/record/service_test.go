package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/subtrack/internal/app/service/canonical"
)

func TestChainKeyBidx(t *testing.T) {
	base := &canonical.ResolvedIdentity{
		BuyerName:   "Acme Corp",
		SellerName:  "AWS",
		PlanName:    "EC2",
		Currency:    "USD",
		AmountCents: 12000,
	}

	k := chainKeyBidx("user-1", base)
	require.Len(t, k, 32)
	assert.Equal(t, k, chainKeyBidx("user-1", base))

	// Any identity component changing moves the record to a different chain.
	other := *base
	other.AmountCents = 12001
	assert.NotEqual(t, k, chainKeyBidx("user-1", &other))
	assert.NotEqual(t, k, chainKeyBidx("user-2", base))
}
