package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/token-atlas/internal/apperrors"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"github.com/rxtech-lab/token-atlas/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IngestRequest is the batch payload accepted from the API and the bulk
// loader. Chains are optional reference data processed before tokens.
type IngestRequest struct {
	Tokens []TokenInput `json:"tokens"`
	Chains []ChainInput `json:"chains,omitempty"`
}

// TokenFailure records one token that could not be processed. Failures do not
// abort the rest of the batch.
type TokenFailure struct {
	Index  int    `json:"index"`
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// IngestResult reports what a batch changed.
type IngestResult struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Families []string       `json:"families"`
	Failures []TokenFailure `json:"failures,omitempty"`
}

// FamilyService is the family resolution engine: it assigns tokens to
// families, selects the canonical token, and keeps family aggregates
// consistent.
type FamilyService interface {
	// ResolveFamily recomputes canonical selection and aggregates for one
	// family under that family's exclusive critical section.
	ResolveFamily(ctx context.Context, familyID string) (*models.Family, error)
	// Ingest processes a token batch: chain upserts first, then every token,
	// then exactly one resolve per distinct affected family.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	GetFamilyByID(ctx context.Context, familyID string) (*models.Family, error)
	ListFamilyIDs(ctx context.Context) ([]string, error)
}

type familyService struct {
	db       *gorm.DB
	tokens   TokenService
	chains   ChainService
	locks    *utils.KeyedMutex
	validate *validator.Validate
	logger   *slog.Logger
}

// NewFamilyService creates a new FamilyService
func NewFamilyService(db *gorm.DB, tokens TokenService, chains ChainService) FamilyService {
	return &familyService{
		db:       db,
		tokens:   tokens,
		chains:   chains,
		locks:    utils.NewKeyedMutex(),
		validate: validator.New(),
		logger:   slog.Default().With("component", "family_service"),
	}
}

func (s *familyService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.Tokens == nil {
		return nil, apperrors.InvalidInput("tokens array is required")
	}

	for _, chain := range req.Chains {
		if err := s.chains.UpsertChain(ctx, chain); err != nil {
			// Registry failures must not block token processing.
			s.logger.Warn("chain upsert failed", "chain_id", chain.ChainID, "error", err)
		}
	}

	result := &IngestResult{}
	seen := make(map[string]bool)

	for i, input := range req.Tokens {
		if err := s.validate.Struct(input); err != nil {
			result.Failures = append(result.Failures, TokenFailure{
				Index:  i,
				Symbol: input.Symbol,
				Error:  err.Error(),
			})
			continue
		}

		token, created, err := s.tokens.UpsertToken(ctx, input)
		if err != nil {
			result.Failures = append(result.Failures, TokenFailure{
				Index:  i,
				Symbol: input.Symbol,
				Error:  err.Error(),
			})
			continue
		}

		if created {
			result.Inserted++
		} else {
			result.Updated++
		}
		if !seen[token.FamilyID] {
			seen[token.FamilyID] = true
			result.Families = append(result.Families, token.FamilyID)
		}
	}

	// One resolve per distinct family no matter how many of its tokens the
	// batch touched.
	for _, familyID := range result.Families {
		if _, err := s.ResolveFamily(ctx, familyID); err != nil {
			s.logger.Error("family resolve failed", "family_id", familyID, "error", err)
		}
	}

	return result, nil
}

func (s *familyService) ResolveFamily(ctx context.Context, familyID string) (*models.Family, error) {
	if familyID == "" {
		return nil, apperrors.InvalidInput("family id is required")
	}

	// Serialize the fetch-compute-upsert cycle per family. Concurrent
	// resolves for distinct families proceed in parallel.
	s.locks.Lock(familyID)
	defer s.locks.Unlock(familyID)

	tokens, err := s.tokens.FindByFamily(ctx, familyID)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return s.resolveOrphan(ctx, familyID)
	}

	canonical := selectCanonical(tokens)
	baseAsset := tokens[0].BaseAsset

	imageURL := tokens[0].ImageURL
	var canonicalID *string
	if canonical != nil {
		canonicalID = &canonical.ID
		imageURL = canonical.ImageURL
	}

	family := models.Family{
		FamilyID:         familyID,
		BaseAsset:        baseAsset,
		CanonicalTokenID: canonicalID,
		Name:             utils.FamilyName(baseAsset),
		Description:      utils.FamilyDescription(baseAsset),
		ImageURL:         imageURL,
		TotalVariants:    len(tokens),
		Chains:           distinctChains(tokens),
	}

	if err := s.upsertFamily(ctx, &family); err != nil {
		return nil, err
	}
	return &family, nil
}

// resolveOrphan applies the retention policy for families whose member count
// dropped to zero: keep the record, zero the aggregates, clear the canonical
// reference.
func (s *familyService) resolveOrphan(ctx context.Context, familyID string) (*models.Family, error) {
	var family models.Family
	err := s.db.WithContext(ctx).Where("family_id = ?", familyID).First(&family).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("family %q not found", familyID)
	}
	if err != nil {
		return nil, apperrors.Transient("failed to look up family", err)
	}

	s.logger.Warn("family has no member tokens, retaining orphaned record", "family_id", familyID)

	family.CanonicalTokenID = nil
	family.TotalVariants = 0
	family.Chains = []string{}
	if err := s.upsertFamily(ctx, &family); err != nil {
		return nil, err
	}
	return &family, nil
}

// upsertFamily persists the recomputed family as a single wholesale write. A
// crash mid-computation loses the whole update rather than leaving a
// partially patched record.
func (s *familyService) upsertFamily(ctx context.Context, family *models.Family) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "family_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_asset", "canonical_token_id", "name", "description",
			"image_url", "total_variants", "chains", "updated_at",
		}),
	}).Create(family).Error
	if err != nil {
		return apperrors.Transient("failed to upsert family", err)
	}
	return nil
}

// selectCanonical picks the canonical token: the first, in creation order
// with a (chain, contractAddress) tie-break, whose canonical flag is set or
// whose kind is CANONICAL. Returns nil when no token qualifies.
func selectCanonical(tokens []models.Token) *models.Token {
	for i := range tokens {
		if tokens[i].IsCanonical || tokens[i].Kind == models.VariantKindCanonical {
			return &tokens[i]
		}
	}
	return nil
}

// distinctChains deduplicates chain tags preserving first-seen order.
func distinctChains(tokens []models.Token) []string {
	seen := make(map[string]bool)
	var chains []string
	for _, t := range tokens {
		if !seen[t.Chain] {
			seen[t.Chain] = true
			chains = append(chains, t.Chain)
		}
	}
	return chains
}

func (s *familyService) GetFamilyByID(ctx context.Context, familyID string) (*models.Family, error) {
	var family models.Family
	err := s.db.WithContext(ctx).Where("family_id = ?", familyID).First(&family).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("family %q not found", familyID)
	}
	if err != nil {
		return nil, apperrors.Transient("failed to look up family", err)
	}
	return &family, nil
}

// ListFamilyIDs returns every known family identifier. Used by the repair
// reconciler to re-resolve the whole catalog.
func (s *familyService) ListFamilyIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Family{}).Pluck("family_id", &ids).Error; err != nil {
		return nil, apperrors.Transient("failed to list family ids", err)
	}
	return ids, nil
}
