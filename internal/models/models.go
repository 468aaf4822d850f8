package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chain represents a chain registry entry. Owned externally; the engine only
// upserts and reads these by ChainID.
type Chain struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	ChainID        string    `gorm:"uniqueIndex;not null" json:"chain_id"`
	Name           string    `gorm:"not null" json:"name"`
	NativeCurrency string    `gorm:"not null" json:"native_currency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Token is one chain-specific representation of an asset. The pair
// (Chain, ContractAddress) is the globally unique identity key used for
// upserts.
type Token struct {
	ID              string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Symbol          string      `gorm:"index;not null" json:"symbol"`
	Name            string      `gorm:"not null" json:"name"`
	Chain           string      `gorm:"not null;uniqueIndex:idx_chain_address" json:"chain"`
	ContractAddress string      `gorm:"not null;uniqueIndex:idx_chain_address" json:"contract_address"`
	Decimals        uint8       `gorm:"not null" json:"decimals"`
	FamilyID        string      `gorm:"index;not null" json:"family_id"`
	BaseAsset       string      `gorm:"index;not null" json:"base_asset"`
	Kind            VariantKind `gorm:"column:kind;index;not null" json:"type"`
	ImageURL        string      `json:"image_url"`
	IsCanonical     bool        `gorm:"default:false" json:"is_canonical"`
	BridgeProtocol  string      `json:"bridge_protocol,omitempty"`
	WrapProtocol    string      `json:"wrapping_protocol,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none was supplied.
func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// Family groups every token sharing a normalized base asset. Aggregates
// (TotalVariants, Chains) are derived, recomputed wholesale on every resolve
// and never patched field by field.
type Family struct {
	FamilyID         string    `gorm:"primaryKey;type:varchar(64)" json:"family_id"`
	BaseAsset        string    `gorm:"uniqueIndex;not null" json:"base_asset"`
	CanonicalTokenID *string   `gorm:"type:varchar(36)" json:"canonical_token_id"`
	Name             string    `gorm:"not null" json:"name"`
	Description      string    `gorm:"not null" json:"description"`
	ImageURL         string    `json:"image_url"`
	TotalVariants    int       `gorm:"not null;default:0" json:"total_variants"`
	Chains           []string  `gorm:"serializer:json" json:"chains"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
