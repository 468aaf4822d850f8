package services

import (
	"context"
	"errors"

	"github.com/rxtech-lab/token-atlas/internal/apperrors"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"github.com/rxtech-lab/token-atlas/internal/utils"
	"gorm.io/gorm"
)

// TokenMetadataInput carries the canonical hint and protocol tags.
type TokenMetadataInput struct {
	IsCanonical      bool   `json:"isCanonical"`
	BridgeProtocol   string `json:"bridgeProtocol,omitempty"`
	WrappingProtocol string `json:"wrappingProtocol,omitempty"`
}

// TokenInput is one token candidate inside an ingest batch.
type TokenInput struct {
	Symbol          string             `json:"symbol" validate:"required"`
	Name            string             `json:"name" validate:"required"`
	Chain           string             `json:"chain" validate:"required"`
	ContractAddress string             `json:"contractAddress" validate:"required"`
	Decimals        int                `json:"decimals" validate:"gte=0,lte=255"`
	BaseAsset       string             `json:"baseAsset" validate:"required"`
	Type            string             `json:"type" validate:"required"`
	ImageURL        string             `json:"imageUrl"`
	Metadata        TokenMetadataInput `json:"metadata"`
}

// TokenService handles token identity lookup and upsert
type TokenService interface {
	// UpsertToken creates or fully overwrites the token identified by the
	// (chain, contractAddress) pair. Returns the stored token and whether it
	// was created.
	UpsertToken(ctx context.Context, input TokenInput) (*models.Token, bool, error)
	GetTokenByID(ctx context.Context, id string) (*models.Token, error)
	// FindByFamily returns every token carrying the family identifier,
	// ordered by creation time with a (chain, contractAddress) tie-break so
	// downstream canonical selection is deterministic.
	FindByFamily(ctx context.Context, familyID string) ([]models.Token, error)
}

type tokenService struct {
	db *gorm.DB
}

// NewTokenService creates a new TokenService
func NewTokenService(db *gorm.DB) TokenService {
	return &tokenService{db: db}
}

func (s *tokenService) UpsertToken(ctx context.Context, input TokenInput) (*models.Token, bool, error) {
	kind, err := models.ParseVariantKind(input.Type)
	if err != nil {
		return nil, false, apperrors.InvalidInput("token %s/%s: %v", input.Chain, input.ContractAddress, err)
	}

	familyID, err := utils.FamilyIdentifier(input.BaseAsset)
	if err != nil {
		return nil, false, err
	}

	var existing models.Token
	lookupErr := s.db.WithContext(ctx).
		Where("chain = ? AND contract_address = ?", input.Chain, input.ContractAddress).
		First(&existing).Error

	if lookupErr == nil {
		if err := s.overwrite(ctx, &existing, input, kind, familyID); err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return nil, false, apperrors.Transient("failed to look up token", lookupErr)
	}

	token := newToken(input, kind, familyID)
	if createErr := s.db.WithContext(ctx).Create(&token).Error; createErr != nil {
		// A concurrent upsert for the same identity key may have won the
		// create. Retry once with a fresh read before giving up.
		retryErr := s.db.WithContext(ctx).
			Where("chain = ? AND contract_address = ?", input.Chain, input.ContractAddress).
			First(&existing).Error
		if retryErr != nil {
			return nil, false, apperrors.Transient("failed to create token", createErr)
		}
		if err := s.overwrite(ctx, &existing, input, kind, familyID); err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return &token, true, nil
}

// overwrite replaces every mutable field with the candidate's values. Full
// replace, not merge: stale protocol tags must not survive a re-ingest.
func (s *tokenService) overwrite(ctx context.Context, token *models.Token, input TokenInput, kind models.VariantKind, familyID string) error {
	updates := map[string]interface{}{
		"symbol":          input.Symbol,
		"name":            input.Name,
		"decimals":        uint8(input.Decimals),
		"family_id":       familyID,
		"base_asset":      input.BaseAsset,
		"kind":            kind,
		"image_url":       input.ImageURL,
		"is_canonical":    input.Metadata.IsCanonical,
		"bridge_protocol": input.Metadata.BridgeProtocol,
		"wrap_protocol":   input.Metadata.WrappingProtocol,
	}
	err := s.db.WithContext(ctx).Model(&models.Token{}).Where("id = ?", token.ID).Updates(updates).Error
	if err != nil {
		return apperrors.Transient("failed to update token", err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", token.ID).First(token).Error; err != nil {
		return apperrors.Transient("failed to reload token", err)
	}
	return nil
}

func newToken(input TokenInput, kind models.VariantKind, familyID string) models.Token {
	return models.Token{
		Symbol:          input.Symbol,
		Name:            input.Name,
		Chain:           input.Chain,
		ContractAddress: input.ContractAddress,
		Decimals:        uint8(input.Decimals),
		FamilyID:        familyID,
		BaseAsset:       input.BaseAsset,
		Kind:            kind,
		ImageURL:        input.ImageURL,
		IsCanonical:     input.Metadata.IsCanonical,
		BridgeProtocol:  input.Metadata.BridgeProtocol,
		WrapProtocol:    input.Metadata.WrappingProtocol,
	}
}

func (s *tokenService) GetTokenByID(ctx context.Context, id string) (*models.Token, error) {
	var token models.Token
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("token %q not found", id)
	}
	if err != nil {
		return nil, apperrors.Transient("failed to look up token", err)
	}
	return &token, nil
}

func (s *tokenService) FindByFamily(ctx context.Context, familyID string) ([]models.Token, error) {
	var tokens []models.Token
	err := s.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order("created_at, chain, contract_address").
		Find(&tokens).Error
	if err != nil {
		return nil, apperrors.Transient("failed to fetch family tokens", err)
	}
	return tokens, nil
}
