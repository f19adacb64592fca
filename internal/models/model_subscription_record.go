package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/subtrack/pkg/types"
)

// RecordExtra keeps resolution provenance next to the record: the values as
// they were extracted from the invoice, before canonical field adoption.
type RecordExtra struct {
	RawBuyerName  string `json:"raw_buyer_name,omitempty"`
	RawSellerName string `json:"raw_seller_name,omitempty"`
	RawPlanName   string `json:"raw_plan_name,omitempty"`
	// MatchType 命中方式（exact/fuzzy）
	MatchType types.MatchType `json:"match_type,omitempty"`
	// SimilarityScore 模糊匹配相似度，exact 时为 0
	SimilarityScore float64 `json:"similarity_score,omitempty"`
}

// SubscriptionRecord 单个账单周期的订阅观测记录
// SellerName, PlanName and Note are ciphertext at rest.
type SubscriptionRecord struct {
	ID     string `gorm:"column:id;primary_key;type:uuid;index:idx_user_id_id,priority:2,sort:desc" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index:idx_user_id_id,priority:1" json:"user_id"`

	// Resolved (canonical) field values copied in at resolution time.
	BuyerName  string `gorm:"column:buyer_name;type:text" json:"buyer_name"`
	SellerName string `gorm:"column:seller_name;type:text" json:"seller_name"`
	PlanName   string `gorm:"column:plan_name;type:text" json:"plan_name"`

	BillingCycle types.BillingCycle `gorm:"column:billing_cycle;type:varchar(16)" json:"billing_cycle"`
	Currency     string             `gorm:"column:currency;type:varchar(8)" json:"currency"`
	AmountCents  int64              `gorm:"column:amount_cents;type:bigint;not null" json:"amount_cents"`

	StartDate       *time.Time `gorm:"column:start_date;type:date;index" json:"start_date"`
	EndDate         *time.Time `gorm:"column:end_date;type:date" json:"end_date"`
	NextRenewalDate *time.Time `gorm:"column:next_renewal_date;type:date" json:"next_renewal_date"`

	Source string `gorm:"column:source;type:varchar(64)" json:"source"`
	Note   string `gorm:"column:note;type:text" json:"note"`

	// CanonicalID 关联 canonical_entities 表
	CanonicalID string `gorm:"column:canonical_id;type:uuid;index" json:"canonical_id"`
	// ChainKeyBidx 订阅链哈希索引，由 resolved 字段派生
	ChainKeyBidx string `gorm:"column:chain_key_bidx;type:varchar(32);index" json:"chain_key_bidx"`

	Extra datatypes.JSONType[*RecordExtra] `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SubscriptionRecord) TableName() string {
	return "subscription_records"
}

// GetExtra returns the provenance payload, never nil.
func (r *SubscriptionRecord) GetExtra() *RecordExtra {
	if r == nil || r.Extra.Data() == nil {
		return &RecordExtra{}
	}
	return r.Extra.Data()
}
