package services

import (
	"context"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rxtech-lab/token-atlas/internal/apperrors"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100

	familyNameCacheTTL = time.Minute
	// UnknownFamilyName is the placeholder shown when an enrichment lookup
	// misses; a dangling reference never fails the whole request.
	UnknownFamilyName = "Unknown"
)

// Pagination is the caller-supplied page window.
type Pagination struct {
	Limit int
	Skip  int
}

// PageInfo tells the caller where the page sits in the full result set.
type PageInfo struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Skip    int   `json:"skip"`
	HasMore bool  `json:"hasMore"`
}

// TokenFilter holds the supported token listing predicates. Chain, Type, and
// FamilyID match exactly; Symbol and BaseAsset are case-insensitive substring
// matches.
type TokenFilter struct {
	Chain     string
	Type      string
	FamilyID  string
	Symbol    string
	BaseAsset string
}

// FamilyFilter holds the supported family listing predicates.
type FamilyFilter struct {
	BaseAsset string
}

// TokenListItem is a token joined with its family's display name.
type TokenListItem struct {
	models.Token
	FamilyName string `json:"family_name"`
}

// TokenPage is one page of enriched tokens.
type TokenPage struct {
	Tokens     []TokenListItem `json:"tokens"`
	Pagination PageInfo        `json:"pagination"`
}

// CanonicalProjection is the bounded canonical-token join attached to family
// listings: identity fields only, to keep payloads small.
type CanonicalProjection struct {
	ID              string `json:"id"`
	Symbol          string `json:"symbol"`
	Name            string `json:"name"`
	Chain           string `json:"chain"`
	ContractAddress string `json:"contract_address"`
}

// FamilyListItem is a family joined with its canonical token projection.
type FamilyListItem struct {
	models.Family
	CanonicalToken *CanonicalProjection `json:"canonical_token"`
}

// FamilyPage is one page of enriched families.
type FamilyPage struct {
	Families   []FamilyListItem `json:"families"`
	Pagination PageInfo         `json:"pagination"`
}

// QueryService serves filtered, paginated projections over tokens and
// families. Reads take no locks and may observe a family mid-recomputation;
// aggregates are replaced wholesale so a partial state is never visible.
type QueryService interface {
	ListTokens(ctx context.Context, filter TokenFilter, page Pagination) (*TokenPage, error)
	ListFamilies(ctx context.Context, filter FamilyFilter, page Pagination) (*FamilyPage, error)
}

type queryService struct {
	db          *gorm.DB
	familyNames *gocache.Cache
}

// NewQueryService creates a new QueryService
func NewQueryService(db *gorm.DB) QueryService {
	return &queryService{
		db:          db,
		familyNames: gocache.New(familyNameCacheTTL, 5*time.Minute),
	}
}

func (s *queryService) ListTokens(ctx context.Context, filter TokenFilter, page Pagination) (*TokenPage, error) {
	limit, skip := normalizePage(page)

	query := s.db.WithContext(ctx).Model(&models.Token{})
	if filter.Chain != "" {
		query = query.Where("chain = ?", filter.Chain)
	}
	if filter.Type != "" {
		kind, err := models.ParseVariantKind(strings.ToUpper(filter.Type))
		if err != nil {
			return nil, apperrors.InvalidInput("%v", err)
		}
		query = query.Where("kind = ?", kind)
	}
	if filter.FamilyID != "" {
		query = query.Where("family_id = ?", filter.FamilyID)
	}
	if filter.Symbol != "" {
		query = query.Where("LOWER(symbol) LIKE ?", "%"+strings.ToLower(filter.Symbol)+"%")
	}
	if filter.BaseAsset != "" {
		query = query.Where("LOWER(base_asset) LIKE ?", "%"+strings.ToLower(filter.BaseAsset)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Transient("failed to count tokens", err)
	}

	var tokens []models.Token
	err := query.Order("created_at DESC").Limit(limit).Offset(skip).Find(&tokens).Error
	if err != nil {
		return nil, apperrors.Transient("failed to list tokens", err)
	}

	items := make([]TokenListItem, 0, len(tokens))
	for _, t := range tokens {
		items = append(items, TokenListItem{
			Token:      t,
			FamilyName: s.familyName(ctx, t.FamilyID),
		})
	}

	return &TokenPage{
		Tokens: items,
		Pagination: PageInfo{
			Total:   total,
			Limit:   limit,
			Skip:    skip,
			HasMore: int64(skip+len(tokens)) < total,
		},
	}, nil
}

func (s *queryService) ListFamilies(ctx context.Context, filter FamilyFilter, page Pagination) (*FamilyPage, error) {
	limit, skip := normalizePage(page)

	query := s.db.WithContext(ctx).Model(&models.Family{})
	if filter.BaseAsset != "" {
		query = query.Where("LOWER(base_asset) LIKE ?", "%"+strings.ToLower(filter.BaseAsset)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Transient("failed to count families", err)
	}

	var families []models.Family
	err := query.Order("total_variants DESC, base_asset ASC").Limit(limit).Offset(skip).Find(&families).Error
	if err != nil {
		return nil, apperrors.Transient("failed to list families", err)
	}

	items := make([]FamilyListItem, 0, len(families))
	for _, f := range families {
		items = append(items, FamilyListItem{
			Family:         f,
			CanonicalToken: s.canonicalProjection(ctx, f.CanonicalTokenID),
		})
	}

	return &FamilyPage{
		Families: items,
		Pagination: PageInfo{
			Total:   total,
			Limit:   limit,
			Skip:    skip,
			HasMore: int64(skip+len(families)) < total,
		},
	}, nil
}

// familyName resolves a family's display name through a short-lived cache.
// Misses degrade to a placeholder rather than failing the listing.
func (s *queryService) familyName(ctx context.Context, familyID string) string {
	if cached, ok := s.familyNames.Get(familyID); ok {
		return cached.(string)
	}

	var family models.Family
	err := s.db.WithContext(ctx).Select("name").Where("family_id = ?", familyID).First(&family).Error
	if err != nil {
		return UnknownFamilyName
	}
	s.familyNames.Set(familyID, family.Name, gocache.DefaultExpiration)
	return family.Name
}

func (s *queryService) canonicalProjection(ctx context.Context, tokenID *string) *CanonicalProjection {
	if tokenID == nil {
		return nil
	}

	var token models.Token
	err := s.db.WithContext(ctx).
		Select("id", "symbol", "name", "chain", "contract_address").
		Where("id = ?", *tokenID).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return nil
	}
	return &CanonicalProjection{
		ID:              token.ID,
		Symbol:          token.Symbol,
		Name:            token.Name,
		Chain:           token.Chain,
		ContractAddress: token.ContractAddress,
	}
}

func normalizePage(page Pagination) (limit, skip int) {
	limit = page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	skip = page.Skip
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}
