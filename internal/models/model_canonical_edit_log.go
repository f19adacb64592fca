package models

import (
	"time"

	"gorm.io/datatypes"
)

// CanonicalEditLog records before/after snapshots of user edits to canonical
// entities. Written asynchronously; failures are logged, not surfaced.
type CanonicalEditLog struct {
	ID          string                                `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID      string                                `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	CanonicalID string                                `gorm:"column:canonical_id;type:uuid;not null;index" json:"canonical_id"`
	Before      datatypes.JSONType[*CanonicalEntity]  `gorm:"column:before;type:jsonb" json:"before"`
	After       datatypes.JSONType[*CanonicalEntity]  `gorm:"column:after;type:jsonb" json:"after"`
	Extra       datatypes.JSONMap                     `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt   time.Time                             `json:"created_at"`
}

func (CanonicalEditLog) TableName() string {
	return "canonical_edit_log"
}
