package models

import (
	"time"
)

// CanonicalEntity is the per-user registry of distinct real-world
// subscriptions. Name fields are stored encrypted; NormalizedKey is derived
// from the plaintext canonical fields and is the upsert conflict target.
type CanonicalEntity struct {
	ID     string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:unique_user_normalized_key,priority:1" json:"user_id"`

	// Canonical business fields. The names are ciphertext at rest.
	CanonicalBuyerName   string `gorm:"column:canonical_buyer_name;type:text;not null" json:"canonical_buyer_name"`
	CanonicalSellerName  string `gorm:"column:canonical_seller_name;type:text;not null" json:"canonical_seller_name"`
	CanonicalPlanName    string `gorm:"column:canonical_plan_name;type:text;not null" json:"canonical_plan_name"`
	CanonicalCurrency    string `gorm:"column:canonical_currency;type:varchar(8);not null" json:"canonical_currency"`
	CanonicalAmountCents int64  `gorm:"column:canonical_amount_cents;type:bigint;not null" json:"canonical_amount_cents"`

	// NormalizedKey is a pure function of the canonical fields (see the
	// canonical package). The composite unique index is what makes the
	// merge-or-create upsert race-free.
	NormalizedKey string `gorm:"column:normalized_key;type:varchar(32);not null;uniqueIndex:unique_user_normalized_key,priority:2" json:"normalized_key"`

	MatchCount    int64     `gorm:"column:match_count;type:bigint;not null;default:1" json:"match_count"`
	LastMatchedAt time.Time `gorm:"column:last_matched_at;default:null" json:"last_matched_at"`

	IsActive bool    `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Notes    *string `gorm:"column:notes;type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CanonicalEntity) TableName() string {
	return "canonical_entities"
}
