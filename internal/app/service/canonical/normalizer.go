package canonical

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var parentheticalRe = regexp.MustCompile(`\([^)]*\)`)

// normalizeName strips parenthesized substrings, lowercases, trims, and
// removes everything outside [a-z0-9]. "Acme (HK) Inc." -> "acmeinc".
func normalizeName(s string) string {
	s = parentheticalRe.ReplaceAllString(s, "")
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatAmountCents renders integer cents as a fixed two-decimal string,
// e.g. 1230 -> "12.30". Negative amounts keep their sign on the whole value.
func FormatAmountCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// NormalizedKey derives the deterministic matching key for a subscription
// fact. The key is a lookup key, not a security boundary; MD5 keeps it short
// and stable. Empty name fields normalize to empty components so partial data
// still yields a usable, if low-quality, key. Currency defaults through
// normalizeCurrency, so the key of a resolved entity is always reproducible
// from its stored fields.
func NormalizedKey(buyer, seller, plan, currency string, amountCents int64) string {
	parts := []string{
		normalizeName(buyer),
		normalizeName(seller),
		normalizeName(plan),
		normalizeCurrency(currency),
		FormatAmountCents(amountCents),
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// normalizeCurrency uppercases and trims a currency code, defaulting to USD
// when the source carried none.
func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "USD"
	}
	return c
}
