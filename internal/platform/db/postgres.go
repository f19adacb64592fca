package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/subtrack/internal/models"
	cfgpkg "github.com/fatflowers/subtrack/pkg/config"
	gormzap "github.com/fatflowers/subtrack/pkg/gormlog"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{Logger: gormzap.New(l)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup. Fuzzy matching needs the
// pg_trgm extension and a trigram index over normalized keys; both are
// created here so a fresh database works without manual steps.
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
		l.Errorf("failed to create pg_trgm extension: %v", err)
		return err
	}

	if err := db.AutoMigrate(
		&models.CanonicalEntity{},
		&models.SubscriptionRecord{},
		&models.CanonicalEditLog{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}

	if err := db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_canonical_entities_normalized_key_trgm " +
			"ON canonical_entities USING gin (normalized_key gin_trgm_ops)",
	).Error; err != nil {
		l.Errorf("failed to create trigram index: %v", err)
		return err
	}

	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
