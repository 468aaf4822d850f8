package services

import (
	"context"
	"errors"

	"github.com/rxtech-lab/token-atlas/internal/apperrors"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"gorm.io/gorm"
)

// ChainInput is the registry payload accepted alongside token batches.
type ChainInput struct {
	ChainID        string `json:"chainId" validate:"required"`
	Name           string `json:"name" validate:"required"`
	NativeCurrency string `json:"nativeCurrency" validate:"required"`
}

// ChainService handles chain registry operations
type ChainService interface {
	UpsertChain(ctx context.Context, input ChainInput) error
	GetChainByID(ctx context.Context, chainID string) (*models.Chain, error)
	ListChains(ctx context.Context) ([]models.Chain, error)
}

type chainService struct {
	db *gorm.DB
}

// NewChainService creates a new ChainService
func NewChainService(db *gorm.DB) ChainService {
	return &chainService{db: db}
}

// UpsertChain creates or overwrites a registry entry by its chain id. The
// operation is idempotent: repeating the same payload leaves the same row.
func (s *chainService) UpsertChain(ctx context.Context, input ChainInput) error {
	if input.ChainID == "" {
		return apperrors.InvalidInput("chainId is required")
	}

	var chain models.Chain
	err := s.db.WithContext(ctx).Where("chain_id = ?", input.ChainID).First(&chain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		chain = models.Chain{
			ChainID:        input.ChainID,
			Name:           input.Name,
			NativeCurrency: input.NativeCurrency,
		}
		if err := s.db.WithContext(ctx).Create(&chain).Error; err != nil {
			return apperrors.Transient("failed to create chain", err)
		}
		return nil
	}
	if err != nil {
		return apperrors.Transient("failed to look up chain", err)
	}

	updates := map[string]interface{}{
		"name":            input.Name,
		"native_currency": input.NativeCurrency,
	}
	if err := s.db.WithContext(ctx).Model(&chain).Updates(updates).Error; err != nil {
		return apperrors.Transient("failed to update chain", err)
	}
	return nil
}

// GetChainByID returns a registry entry by its chain id
func (s *chainService) GetChainByID(ctx context.Context, chainID string) (*models.Chain, error) {
	var chain models.Chain
	err := s.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&chain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("chain %q not found", chainID)
	}
	if err != nil {
		return nil, apperrors.Transient("failed to look up chain", err)
	}
	return &chain, nil
}

// ListChains returns all registry entries
func (s *chainService) ListChains(ctx context.Context) ([]models.Chain, error) {
	var chains []models.Chain
	if err := s.db.WithContext(ctx).Order("chain_id").Find(&chains).Error; err != nil {
		return nil, apperrors.Transient("failed to list chains", err)
	}
	return chains, nil
}
