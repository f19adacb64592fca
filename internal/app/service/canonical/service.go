package canonical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/subtrack/internal/models"
	"github.com/fatflowers/subtrack/pkg/config"
	"github.com/fatflowers/subtrack/pkg/fieldcrypt"
	"github.com/fatflowers/subtrack/pkg/logctx"
	"github.com/fatflowers/subtrack/pkg/metrics"
	"github.com/fatflowers/subtrack/pkg/tool"
	"github.com/fatflowers/subtrack/pkg/types"
)

const (
	// FuzzyThreshold is exclusive: a candidate must score strictly above it.
	FuzzyThreshold = 0.85

	// fuzzyQueryTimeout bounds the trigram similarity round trip; a timeout
	// degrades to "no match".
	fuzzyQueryTimeout = 3 * time.Second

	// cacheOpTimeout bounds each cache round trip so a slow redis cannot
	// stall a resolve; a timeout degrades to miss / skipped write-back.
	cacheOpTimeout = 500 * time.Millisecond
)

// ErrNotFound is returned by lookups that miss.
var ErrNotFound = errors.New("canonical entity not found")

// RawFields are the extracted values of one subscription fact, before
// resolution. Amounts are integer cents.
type RawFields struct {
	BuyerName   string `json:"buyer_name"`
	SellerName  string `json:"seller_name"`
	PlanName    string `json:"plan_name"`
	Currency    string `json:"currency"`
	AmountCents int64  `json:"amount_cents"`
}

// Key derives the normalized matching key for these fields.
func (f RawFields) Key() string {
	return NormalizedKey(f.BuyerName, f.SellerName, f.PlanName, f.Currency, f.AmountCents)
}

// ResolvedIdentity is the outcome of a resolution: the canonical identity a
// fact belongs to plus the canonical field values to use going forward.
type ResolvedIdentity struct {
	MatchType     types.MatchType `json:"match_type"`
	Score         float64         `json:"score,omitempty"`
	CanonicalID   string          `json:"canonical_id"`
	NormalizedKey string          `json:"normalized_key"`
	BuyerName     string          `json:"buyer_name"`
	SellerName    string          `json:"seller_name"`
	PlanName      string          `json:"plan_name"`
	Currency      string          `json:"currency"`
	AmountCents   int64           `json:"amount_cents"`
}

// ResolutionCache is the read-through cache over resolved identities.
// All methods are best-effort: errors degrade to miss / no-op at the caller.
type ResolutionCache interface {
	Get(ctx context.Context, userID, normalizedKey string) (*ResolvedIdentity, error)
	Set(ctx context.Context, userID, normalizedKey string, identity *ResolvedIdentity) error
	// Invalidate deletes one entry, or every entry for the user when
	// normalizedKey is empty.
	Invalidate(ctx context.Context, userID, normalizedKey string) error
}

// SimilarityIndex finds the best fuzzy candidate for a key among a user's
// active canonical entities. Implementations pre-filter on the threshold;
// the service re-checks it so the boundary is owned in one place.
type SimilarityIndex interface {
	BestMatch(ctx context.Context, userID, normalizedKey string) (*models.CanonicalEntity, float64, error)
}

// Store is the persistence port for canonical entities. Upsert must be a
// single atomic merge-or-create keyed on (user_id, normalized_key).
type Store interface {
	FindExact(ctx context.Context, userID, normalizedKey string) (*models.CanonicalEntity, error)
	Upsert(ctx context.Context, ent *models.CanonicalEntity) (*models.CanonicalEntity, error)
	Get(ctx context.Context, userID, canonicalID string) (*models.CanonicalEntity, error)
	Update(ctx context.Context, ent *models.CanonicalEntity) error
	SaveEditLog(log *models.CanonicalEditLog) error
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

type Service struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store Store
	index SimilarityIndex
	cache ResolutionCache
	crypt *fieldcrypt.Codec
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, store Store, index SimilarityIndex, cache ResolutionCache, crypt *fieldcrypt.Codec) *Service {
	return &Service{cfg: cfg, log: log, store: store, index: index, cache: cache, crypt: crypt}
}

// Resolve maps one raw subscription fact to its canonical identity, creating
// it when nothing matches. The pipeline is cache -> exact -> fuzzy -> atomic
// upsert -> cache write-back. Only the upsert failing is fatal; every other
// step degrades and falls through.
func (s *Service) Resolve(ctx context.Context, userID string, raw RawFields) (*ResolvedIdentity, error) {
	lg := logctx.FromCtx(ctx, s.log)
	key := raw.Key()

	gctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	cached, err := s.cache.Get(gctx, userID, key)
	cancel()
	if err != nil {
		lg.Warnf("canonical cache read failed, treating as miss: %v", err)
		metrics.CacheResult("error")
	} else if cached != nil {
		metrics.CacheResult("hit")
		return cached, nil
	} else {
		metrics.CacheResult("miss")
	}

	resolved, err := s.resolveUncached(ctx, userID, key, raw)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	if err := s.cache.Set(sctx, userID, key, resolved); err != nil {
		lg.Warnf("canonical cache write failed: %v", err)
	}
	cancel()
	metrics.Resolution(string(resolved.MatchType))
	return resolved, nil
}

func (s *Service) resolveUncached(ctx context.Context, userID, key string, raw RawFields) (*ResolvedIdentity, error) {
	lg := logctx.FromCtx(ctx, s.log)

	// Exact read first: the common repeat-billing case should not pay for a
	// trigram scan. The read is advisory only; existence is still arbitrated
	// by the upsert below.
	ent, err := s.store.FindExact(ctx, userID, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		lg.Warnf("exact canonical lookup failed, falling through: %v", err)
		ent = nil
	}
	if ent != nil {
		return s.mergeInto(ctx, userID, ent, types.MatchTypeExact, 0)
	}

	qctx, cancel := context.WithTimeout(ctx, fuzzyQueryTimeout)
	candidate, score, err := s.index.BestMatch(qctx, userID, key)
	cancel()
	switch {
	case err != nil:
		// Under-matching is the acceptable degradation: we may create a
		// near-duplicate canonical entity, never lose the record.
		lg.Warnf("fuzzy match query failed, treating as no match: %v", err)
	case candidate != nil && score > FuzzyThreshold:
		lg.Infof("fuzzy match found, user_id=%s canonical_id=%s score=%.3f", userID, candidate.ID, score)
		return s.mergeInto(ctx, userID, candidate, types.MatchTypeFuzzy, score)
	}

	return s.createNew(ctx, userID, key, raw)
}

// mergeInto lands the write on an existing entity's own normalized key so the
// unique-constraint conflict path increments its match_count atomically. The
// entity's canonical spelling wins; the new fact does not get to redefine it.
func (s *Service) mergeInto(ctx context.Context, userID string, ent *models.CanonicalEntity, matchType types.MatchType, score float64) (*ResolvedIdentity, error) {
	row, err := s.store.Upsert(ctx, &models.CanonicalEntity{
		ID:                   tool.GenerateUUIDV7(),
		UserID:               userID,
		CanonicalBuyerName:   ent.CanonicalBuyerName,
		CanonicalSellerName:  ent.CanonicalSellerName,
		CanonicalPlanName:    ent.CanonicalPlanName,
		CanonicalCurrency:    ent.CanonicalCurrency,
		CanonicalAmountCents: ent.CanonicalAmountCents,
		NormalizedKey:        ent.NormalizedKey,
		MatchCount:           1,
		LastMatchedAt:        time.Now(),
		IsActive:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert canonical entity: %w", err)
	}
	return s.toIdentity(ctx, row, matchType, score)
}

func (s *Service) createNew(ctx context.Context, userID, key string, raw RawFields) (*ResolvedIdentity, error) {
	buyer, err := s.crypt.EncryptString(raw.BuyerName)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt buyer name: %w", err)
	}
	seller, err := s.crypt.EncryptString(raw.SellerName)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt seller name: %w", err)
	}
	plan, err := s.crypt.EncryptString(raw.PlanName)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt plan name: %w", err)
	}

	row, err := s.store.Upsert(ctx, &models.CanonicalEntity{
		ID:                   tool.GenerateUUIDV7(),
		UserID:               userID,
		CanonicalBuyerName:   buyer,
		CanonicalSellerName:  seller,
		CanonicalPlanName:    plan,
		CanonicalCurrency:    normalizeCurrency(raw.Currency),
		CanonicalAmountCents: raw.AmountCents,
		NormalizedKey:        key,
		MatchCount:           1,
		LastMatchedAt:        time.Now(),
		IsActive:             true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert canonical entity: %w", err)
	}
	// A concurrent resolver may have won the insert; either way the row is
	// the single canonical identity for this key now.
	return s.toIdentity(ctx, row, types.MatchTypeExact, 0)
}

// toIdentity decrypts a stored entity into a plaintext resolved identity.
func (s *Service) toIdentity(ctx context.Context, ent *models.CanonicalEntity, matchType types.MatchType, score float64) (*ResolvedIdentity, error) {
	lg := logctx.FromCtx(ctx, s.log)
	decrypt := func(v string) string {
		plain, err := s.crypt.DecryptString(v)
		if err != nil {
			// Keep the stored value readable rather than failing the resolve.
			lg.Errorf("failed to decrypt canonical field, canonical_id=%s: %v", ent.ID, err)
			return v
		}
		return plain
	}
	return &ResolvedIdentity{
		MatchType:     matchType,
		Score:         score,
		CanonicalID:   ent.ID,
		NormalizedKey: ent.NormalizedKey,
		BuyerName:     decrypt(ent.CanonicalBuyerName),
		SellerName:    decrypt(ent.CanonicalSellerName),
		PlanName:      decrypt(ent.CanonicalPlanName),
		Currency:      ent.CanonicalCurrency,
		AmountCents:   ent.CanonicalAmountCents,
	}, nil
}

// CanonicalUpdate carries user edits to canonical field values. Nil fields
// keep their stored value.
type CanonicalUpdate struct {
	BuyerName   *string `json:"buyer_name"`
	SellerName  *string `json:"seller_name"`
	PlanName    *string `json:"plan_name"`
	Currency    *string `json:"currency"`
	AmountCents *int64  `json:"amount_cents"`
	Notes       *string `json:"notes"`
}

// UpdateCanonical applies a user edit to a canonical entity: merges fields,
// re-derives the normalized key, persists, writes an async edit log, and
// invalidates the user's cached resolutions (any number of cached entries may
// now carry stale canonical values).
func (s *Service) UpdateCanonical(ctx context.Context, userID, canonicalID string, update CanonicalUpdate) (*ResolvedIdentity, error) {
	lg := logctx.FromCtx(ctx, s.log)

	ent, err := s.store.Get(ctx, userID, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load canonical entity: %w", err)
	}
	before := *ent

	names, err := s.applyUpdate(ent, update)
	if err != nil {
		return nil, err
	}
	ent.NormalizedKey = NormalizedKey(
		names.plainBuyer, names.plainSeller, names.plainPlan,
		ent.CanonicalCurrency, ent.CanonicalAmountCents,
	)
	ent.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, ent); err != nil {
		return nil, fmt.Errorf("failed to update canonical entity: %w", err)
	}

	go func(before, after models.CanonicalEntity) {
		editLog := &models.CanonicalEditLog{
			ID:          tool.GenerateUUIDV7(),
			UserID:      after.UserID,
			CanonicalID: after.ID,
			Before:      datatypes.NewJSONType(&before),
			After:       datatypes.NewJSONType(&after),
			Extra:       datatypes.JSONMap{},
		}
		if err := s.store.SaveEditLog(editLog); err != nil {
			lg.Errorf("failed to save canonical edit log: %v", err)
		}
	}(before, *ent)

	// All of the user's cached resolutions may point at the old spelling.
	s.Invalidate(ctx, userID, "")

	return s.toIdentity(ctx, ent, types.MatchTypeExact, 0)
}

type mergedNames struct {
	plainBuyer  string
	plainSeller string
	plainPlan   string
}

// applyUpdate merges the edit into ent in place (encrypting changed name
// fields) and returns the resulting plaintext names for key derivation.
func (s *Service) applyUpdate(ent *models.CanonicalEntity, update CanonicalUpdate) (*mergedNames, error) {
	names := &mergedNames{}

	merge := func(next *string, stored *string, plain *string, what string) error {
		if next != nil {
			enc, err := s.crypt.EncryptString(*next)
			if err != nil {
				return fmt.Errorf("failed to encrypt %s: %w", what, err)
			}
			*stored = enc
			*plain = *next
			return nil
		}
		dec, err := s.crypt.DecryptString(*stored)
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", what, err)
		}
		*plain = dec
		return nil
	}

	if err := merge(update.BuyerName, &ent.CanonicalBuyerName, &names.plainBuyer, "buyer name"); err != nil {
		return nil, err
	}
	if err := merge(update.SellerName, &ent.CanonicalSellerName, &names.plainSeller, "seller name"); err != nil {
		return nil, err
	}
	if err := merge(update.PlanName, &ent.CanonicalPlanName, &names.plainPlan, "plan name"); err != nil {
		return nil, err
	}
	if update.Currency != nil {
		ent.CanonicalCurrency = normalizeCurrency(*update.Currency)
	}
	if update.AmountCents != nil {
		ent.CanonicalAmountCents = *update.AmountCents
	}
	if update.Notes != nil {
		enc, err := s.crypt.EncryptString(*update.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt notes: %w", err)
		}
		ent.Notes = &enc
	}
	return names, nil
}

// Invalidate removes cached resolutions. With an empty key every entry for
// the user is dropped. A stale cache entry is bounded by the TTL, so failures
// are logged, never raised.
func (s *Service) Invalidate(ctx context.Context, userID, normalizedKey string) {
	if err := s.cache.Invalidate(ctx, userID, normalizedKey); err != nil {
		logctx.FromCtx(ctx, s.log).Warnf("canonical cache invalidation failed, user_id=%s: %v", userID, err)
	}
}

// ScanCanonicalEntities lists canonical entities for admin tooling with
// filters and pagination. Decryption is intentionally not performed here.
func (s *Service) ScanCanonicalEntities(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}
	return s.store.Scan(ctx, req)
}
