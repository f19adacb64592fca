package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizedKey_Deterministic(t *testing.T) {
	k1 := NormalizedKey("Acme Corp", "AWS", "EC2", "usd", 12000)
	k2 := NormalizedKey("Acme Corp", "AWS", "EC2", "usd", 12000)
	require.Equal(t, k1, k2)
	require.Len(t, k1, 32)
}

func TestNormalizedKey_InsensitiveToCaseWhitespaceParentheticals(t *testing.T) {
	base := NormalizedKey("Acme Inc", "Netflix", "Premium", "USD", 1599)

	tests := []struct {
		name  string
		buyer string
	}{
		{name: "lowercase", buyer: "acme inc"},
		{name: "uppercase", buyer: "ACME INC"},
		{name: "surrounding whitespace", buyer: "  Acme Inc  "},
		{name: "parenthetical stripped", buyer: "ACME (HQ) INC"},
		{name: "punctuation stripped", buyer: "Acme, Inc."},
		{name: "separators stripped", buyer: "A-c-m-e Inc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, base, NormalizedKey(tt.buyer, "Netflix", "Premium", "USD", 1599))
		})
	}
}

func TestNormalizedKey_DistinguishesFields(t *testing.T) {
	base := NormalizedKey("Acme", "AWS", "EC2", "USD", 12000)
	assert.NotEqual(t, base, NormalizedKey("Acme", "AWS", "EC2", "USD", 12001))
	assert.NotEqual(t, base, NormalizedKey("Acme", "AWS", "EC2", "EUR", 12000))
	assert.NotEqual(t, base, NormalizedKey("Acme", "AWS", "S3", "USD", 12000))
	assert.NotEqual(t, base, NormalizedKey("Acme", "GCP", "EC2", "USD", 12000))
}

func TestNormalizedKey_CurrencyCaseFolded(t *testing.T) {
	assert.Equal(t,
		NormalizedKey("Acme", "AWS", "EC2", "usd", 12000),
		NormalizedKey("Acme", "AWS", "EC2", " USD ", 12000),
	)
}

func TestNormalizedKey_EmptyCurrencyDefaultsToUSD(t *testing.T) {
	// A fact with no currency and one stored with the USD default must land on
	// the same key, otherwise the stored fields could not reproduce the key.
	assert.Equal(t,
		NormalizedKey("Acme", "AWS", "EC2", "", 12000),
		NormalizedKey("Acme", "AWS", "EC2", "USD", 12000),
	)
	assert.Equal(t,
		NormalizedKey("Acme", "AWS", "EC2", "  ", 12000),
		NormalizedKey("Acme", "AWS", "EC2", "usd", 12000),
	)
	assert.NotEqual(t,
		NormalizedKey("Acme", "AWS", "EC2", "", 12000),
		NormalizedKey("Acme", "AWS", "EC2", "EUR", 12000),
	)
}

func TestNormalizedKey_EmptyFieldsStillProduceKey(t *testing.T) {
	k := NormalizedKey("", "", "", "", 0)
	require.Len(t, k, 32)
	// Deterministic for repeated partial data.
	assert.Equal(t, k, NormalizedKey("", "", "", "", 0))
	assert.NotEqual(t, k, NormalizedKey("x", "", "", "", 0))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme (HK)", "acme"},
		{"Acme (HK) Inc.", "acmeinc"},
		{"  Spotify AB  ", "spotifyab"},
		{"GitHub, Inc. (US) ", "githubinc"},
		{"(all parenthetical)", ""},
		{"", ""},
		{"123 GO!", "123go"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeName(tt.in), "input %q", tt.in)
	}
}

func TestFormatAmountCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{12000, "120.00"},
		{1230, "12.30"},
		{5, "0.05"},
		{0, "0.00"},
		{-199, "-1.99"},
		{100, "1.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmountCents(tt.cents))
	}
}
