package record

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/subtrack/internal/app/service/canonical"
	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/config"
	"github.com/fatflowers/subtrack/pkg/fieldcrypt"
	"github.com/fatflowers/subtrack/pkg/logctx"
	"github.com/fatflowers/subtrack/pkg/tool"
	"github.com/fatflowers/subtrack/pkg/types"
)

type Service struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *zap.SugaredLogger
	canonical *canonical.Service
	crypt     *fieldcrypt.Codec
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, cs *canonical.Service, crypt *fieldcrypt.Codec) *Service {
	return &Service{cfg: cfg, db: db, log: log, canonical: cs, crypt: crypt}
}

// InsertRequest carries one extracted subscription fact, as seen on the
// invoice. Amounts are integer cents.
type InsertRequest struct {
	BuyerName       string             `json:"buyer_name"`
	SellerName      string             `json:"seller_name" binding:"required"`
	PlanName        string             `json:"plan_name"`
	Currency        string             `json:"currency"`
	AmountCents     int64              `json:"amount_cents"`
	BillingCycle    types.BillingCycle `json:"billing_cycle"`
	StartDate       *time.Time         `json:"start_date"`
	EndDate         *time.Time         `json:"end_date"`
	NextRenewalDate *time.Time         `json:"next_renewal_date"`
	Source          string             `json:"source"`
	Note            string             `json:"note"`
}

// Insert resolves the fact's canonical identity, adopts the canonical field
// values, and persists the record with provenance of the raw values.
func (s *Service) Insert(ctx context.Context, userID string, req *InsertRequest) (*models.SubscriptionRecord, error) {
	if req.BillingCycle != "" && !req.BillingCycle.Valid() {
		return nil, fmt.Errorf("invalid billing cycle: %s", req.BillingCycle)
	}

	resolved, err := s.canonical.Resolve(ctx, userID, canonical.RawFields{
		BuyerName:   req.BuyerName,
		SellerName:  req.SellerName,
		PlanName:    req.PlanName,
		Currency:    req.Currency,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve canonical identity: %w", err)
	}

	rec := &models.SubscriptionRecord{
		ID:              tool.GenerateUUIDV7(),
		UserID:          userID,
		BuyerName:       resolved.BuyerName,
		SellerName:      resolved.SellerName,
		PlanName:        resolved.PlanName,
		BillingCycle:    req.BillingCycle,
		Currency:        resolved.Currency,
		AmountCents:     resolved.AmountCents,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		NextRenewalDate: req.NextRenewalDate,
		Source:          req.Source,
		Note:            req.Note,
		CanonicalID:     resolved.CanonicalID,
		ChainKeyBidx:    chainKeyBidx(userID, resolved),
		Extra: datatypes.NewJSONType(&models.RecordExtra{
			RawBuyerName:    req.BuyerName,
			RawSellerName:   req.SellerName,
			RawPlanName:     req.PlanName,
			MatchType:       resolved.MatchType,
			SimilarityScore: resolved.Score,
		}),
	}

	if err := s.encryptRecord(rec); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription record: %w", err)
	}

	logctx.FromCtx(ctx, s.log).Infof("inserted subscription record, user_id=%s record_id=%s match_type=%s", userID, rec.ID, resolved.MatchType)
	s.decryptRecord(ctx, rec)
	return rec, nil
}

// BatchItemResult reports the outcome of one item in a batch insert.
type BatchItemResult struct {
	Index  int                        `json:"index"`
	Record *models.SubscriptionRecord `json:"record,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// InsertBatch inserts records with per-item failure isolation: one bad item
// does not abort its siblings.
func (s *Service) InsertBatch(ctx context.Context, userID string, reqs []*InsertRequest) ([]*BatchItemResult, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	results := make([]*BatchItemResult, 0, len(reqs))
	for i, req := range reqs {
		rec, err := s.Insert(ctx, userID, req)
		if err != nil {
			logctx.FromCtx(ctx, s.log).Warnf("batch item failed, user_id=%s index=%d: %v", userID, i, err)
			results = append(results, &BatchItemResult{Index: i, Error: err.Error()})
			continue
		}
		results = append(results, &BatchItemResult{Index: i, Record: rec})
	}
	return results, nil
}

// UpdateRequest merges into an existing record. Nil fields keep their stored
// value.
type UpdateRequest struct {
	BuyerName       *string             `json:"buyer_name"`
	SellerName      *string             `json:"seller_name"`
	PlanName        *string             `json:"plan_name"`
	Currency        *string             `json:"currency"`
	AmountCents     *int64              `json:"amount_cents"`
	BillingCycle    *types.BillingCycle `json:"billing_cycle"`
	StartDate       *time.Time          `json:"start_date"`
	EndDate         *time.Time          `json:"end_date"`
	NextRenewalDate *time.Time          `json:"next_renewal_date"`
	Source          *string             `json:"source"`
	Note            *string             `json:"note"`
}

func (r *UpdateRequest) touchesIdentity() bool {
	return r.BuyerName != nil || r.SellerName != nil || r.PlanName != nil ||
		r.Currency != nil || r.AmountCents != nil
}

// Update merges an edit into a record. Identity field changes are propagated
// to the canonical entity, which re-derives its normalized key and drops the
// user's stale cached resolutions; the record then re-adopts the canonical
// values and its chain key.
func (s *Service) Update(ctx context.Context, userID, recordID string, req *UpdateRequest) (*models.SubscriptionRecord, error) {
	if req.BillingCycle != nil && !req.BillingCycle.Valid() {
		return nil, fmt.Errorf("invalid billing cycle: %s", *req.BillingCycle)
	}

	rec, err := s.getRecord(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	if req.touchesIdentity() {
		resolved, err := s.canonical.UpdateCanonical(ctx, userID, rec.CanonicalID, canonical.CanonicalUpdate{
			BuyerName:   req.BuyerName,
			SellerName:  req.SellerName,
			PlanName:    req.PlanName,
			Currency:    req.Currency,
			AmountCents: req.AmountCents,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to propagate canonical edit: %w", err)
		}
		rec.BuyerName = resolved.BuyerName
		rec.SellerName = resolved.SellerName
		rec.PlanName = resolved.PlanName
		rec.Currency = resolved.Currency
		rec.AmountCents = resolved.AmountCents
		rec.ChainKeyBidx = chainKeyBidx(userID, resolved)
	}

	if req.BillingCycle != nil {
		rec.BillingCycle = *req.BillingCycle
	}
	if req.StartDate != nil {
		rec.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		rec.EndDate = req.EndDate
	}
	if req.NextRenewalDate != nil {
		rec.NextRenewalDate = req.NextRenewalDate
	}
	if req.Source != nil {
		rec.Source = *req.Source
	}
	if req.Note != nil {
		rec.Note = *req.Note
	}
	rec.UpdatedAt = time.Now()

	if err := s.encryptRecord(rec); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to update subscription record: %w", err)
	}

	s.decryptRecord(ctx, rec)
	return rec, nil
}

// Delete removes records by id, scoped to the user. Canonical entities are
// untouched; they keep serving future resolutions.
func (s *Service) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("no record ids given")
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&models.SubscriptionRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete subscription records: %w", res.Error)
	}
	logctx.FromCtx(ctx, s.log).Infof("deleted subscription records, user_id=%s count=%d", userID, res.RowsAffected)
	return res.RowsAffected, nil
}

// ChainView is one subscription chain as presented to the user: the latest
// period plus lifecycle reading and history depth.
type ChainView struct {
	Representative *models.SubscriptionRecord `json:"representative"`
	StatusView
	PeriodCount int        `json:"period_count"`
	FirstStart  *time.Time `json:"first_start"`
}

// ListChains groups the user's records into chains and classifies each
// representative. An empty status lists everything.
func (s *Service) ListChains(ctx context.Context, userID string, status types.ChainStatus) ([]*ChainView, error) {
	var recs []*models.SubscriptionRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscription records: %w", err)
	}
	for _, rec := range recs {
		s.decryptRecord(ctx, rec)
	}

	today := time.Now()
	views := make([]*ChainView, 0)
	for _, chain := range GroupChains(recs) {
		rep := chain[len(chain)-1]
		view := &ChainView{
			Representative: rep,
			StatusView:     Classify(rep, today),
			PeriodCount:    len(chain),
			FirstStart:     chain[0].StartDate,
		}
		if status != "" && view.Status != status {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

// RawQuery filters the flat record listing. Zero values fall back to the
// current year.
type RawQuery struct {
	Year      int        `form:"year"`
	Month     int        `form:"month"`
	StartDate *time.Time `form:"start_date" time_format:"2006-01-02"`
	EndDate   *time.Time `form:"end_date" time_format:"2006-01-02"`
	Limit     int        `form:"limit"`
	Offset    int        `form:"offset"`
}

// ListRaw returns ungrouped records, newest first.
func (s *Service) ListRaw(ctx context.Context, userID string, q *RawQuery) ([]*models.SubscriptionRecord, int64, error) {
	if q == nil {
		q = &RawQuery{}
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.SubscriptionRecord{}).Where("user_id = ?", userID)
	switch {
	case q.StartDate != nil || q.EndDate != nil:
		if q.StartDate != nil {
			tx = tx.Where("start_date >= ?", q.StartDate)
		}
		if q.EndDate != nil {
			tx = tx.Where("start_date <= ?", q.EndDate)
		}
	default:
		year := q.Year
		if year == 0 {
			year = time.Now().Year()
		}
		if q.Month >= 1 && q.Month <= 12 {
			from := time.Date(year, time.Month(q.Month), 1, 0, 0, 0, 0, time.UTC)
			tx = tx.Where("start_date >= ? AND start_date < ?", from, from.AddDate(0, 1, 0))
		} else {
			from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
			tx = tx.Where("start_date >= ? AND start_date < ?", from, from.AddDate(1, 0, 0))
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscription records: %w", err)
	}

	var recs []*models.SubscriptionRecord
	if err := tx.Order("start_date desc NULLS LAST, created_at desc").
		Limit(q.Limit).Offset(q.Offset).
		Find(&recs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list subscription records: %w", err)
	}
	for _, rec := range recs {
		s.decryptRecord(ctx, rec)
	}
	return recs, total, nil
}

func (s *Service) getRecord(ctx context.Context, userID, recordID string) (*models.SubscriptionRecord, error) {
	var rec models.SubscriptionRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, recordID).
		First(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to load subscription record: %w", err)
	}
	s.decryptRecord(ctx, &rec)
	return &rec, nil
}

// chainKeyBidx derives the blind chain index from resolved field values so
// grouping can filter on an indexed column without decrypting.
func chainKeyBidx(userID string, r *canonical.ResolvedIdentity) string {
	joined := strings.Join([]string{
		userID, r.BuyerName, r.SellerName, r.PlanName,
		r.Currency, canonical.FormatAmountCents(r.AmountCents),
	}, "|")
	sum := md5.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// encryptRecord seals the sensitive columns in place before a write.
func (s *Service) encryptRecord(rec *models.SubscriptionRecord) error {
	var err error
	if rec.SellerName, err = s.crypt.EncryptString(rec.SellerName); err != nil {
		return fmt.Errorf("failed to encrypt seller name: %w", err)
	}
	if rec.PlanName, err = s.crypt.EncryptString(rec.PlanName); err != nil {
		return fmt.Errorf("failed to encrypt plan name: %w", err)
	}
	if rec.Note, err = s.crypt.EncryptString(rec.Note); err != nil {
		return fmt.Errorf("failed to encrypt note: %w", err)
	}
	return nil
}

// decryptRecord opens the sensitive columns in place after a read. A field
// that fails to decrypt keeps its stored value so the record stays usable.
func (s *Service) decryptRecord(ctx context.Context, rec *models.SubscriptionRecord) {
	lg := logctx.FromCtx(ctx, s.log)
	open := func(v string) string {
		plain, err := s.crypt.DecryptString(v)
		if err != nil {
			lg.Errorf("failed to decrypt record field, record_id=%s: %v", rec.ID, err)
			return v
		}
		return plain
	}
	rec.SellerName = open(rec.SellerName)
	rec.PlanName = open(rec.PlanName)
	rec.Note = open(rec.Note)
}
