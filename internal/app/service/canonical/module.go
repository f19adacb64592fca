package canonical

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module exposes the canonical resolution service via Fx. The resolution
// cache implementation is provided by the platform cache module.
var Module = fx.Options(
	fx.Provide(
		func(db *gorm.DB) Store { return NewGormStore(db) },
		func(db *gorm.DB) SimilarityIndex { return NewPgTrgmIndex(db) },
		NewService,
	),
)
