package services

import (
	"testing"

	"github.com/rxtech-lab/token-atlas/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory sqlite database. The pool is pinned to a
// single connection: every pooled connection would otherwise get its own
// private in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.Chain{}, &models.Token{}, &models.Family{})
	require.NoError(t, err)

	return db
}

func tokenInput(symbol, chain, address, baseAsset, kind string, canonical bool) TokenInput {
	return TokenInput{
		Symbol:          symbol,
		Name:            symbol + " Token",
		Chain:           chain,
		ContractAddress: address,
		Decimals:        18,
		BaseAsset:       baseAsset,
		Type:            kind,
		ImageURL:        "/tokens/" + symbol + ".png",
		Metadata:        TokenMetadataInput{IsCanonical: canonical},
	}
}
