package canonical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/types"
)

// ScanRequest is an admin listing request over canonical entities.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.CanonicalEntity `json:"items"`
	Total int64                     `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// GormStore persists canonical entities in postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (g *GormStore) FindExact(ctx context.Context, userID, normalizedKey string) (*models.CanonicalEntity, error) {
	var ent models.CanonicalEntity
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND normalized_key = ? AND is_active", userID, normalizedKey).
		First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ent, nil
}

// Upsert is the single mutation point of the registry: one INSERT whose
// unique-constraint conflict on (user_id, normalized_key) becomes a
// match_count increment on the existing row. The RETURNING clause hands back
// the surviving row either way, so concurrent first-time resolutions of the
// same subscription converge on one canonical id.
func (g *GormStore) Upsert(ctx context.Context, ent *models.CanonicalEntity) (*models.CanonicalEntity, error) {
	now := time.Now()
	err := g.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "normalized_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"match_count":     gorm.Expr("canonical_entities.match_count + 1"),
				"last_matched_at": now,
				"updated_at":      now,
			}),
		},
		clause.Returning{},
	).Create(ent).Error
	if err != nil {
		return nil, err
	}
	return ent, nil
}

func (g *GormStore) Get(ctx context.Context, userID, canonicalID string) (*models.CanonicalEntity, error) {
	var ent models.CanonicalEntity
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, canonicalID).
		First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ent, nil
}

func (g *GormStore) Update(ctx context.Context, ent *models.CanonicalEntity) error {
	return g.db.WithContext(ctx).Save(ent).Error
}

func (g *GormStore) SaveEditLog(log *models.CanonicalEditLog) error {
	return g.db.Save(log).Error
}

func (g *GormStore) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	tx := g.db.WithContext(ctx).Model(&models.CanonicalEntity{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count canonical entities: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}

	var rows []*models.CanonicalEntity
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list canonical entities: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}

// PgTrgmIndex answers fuzzy-candidate queries with postgres pg_trgm
// similarity over stored normalized keys.
type PgTrgmIndex struct {
	db *gorm.DB
}

func NewPgTrgmIndex(db *gorm.DB) *PgTrgmIndex { return &PgTrgmIndex{db: db} }

type fuzzyRow struct {
	models.CanonicalEntity
	Score float64 `gorm:"column:score"`
}

// BestMatch returns the top-scoring active entity above the threshold, ties
// broken by match_count so the already-most-matched identity wins.
func (p *PgTrgmIndex) BestMatch(ctx context.Context, userID, normalizedKey string) (*models.CanonicalEntity, float64, error) {
	var rows []fuzzyRow
	err := p.db.WithContext(ctx).Raw(`
SELECT *, similarity(normalized_key, ?) AS score
FROM canonical_entities
WHERE user_id = ?
  AND is_active
  AND similarity(normalized_key, ?) > ?
ORDER BY score DESC, match_count DESC
LIMIT 1`, normalizedKey, userID, normalizedKey, FuzzyThreshold).Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}
	ent := rows[0].CanonicalEntity
	return &ent, rows[0].Score, nil
}
