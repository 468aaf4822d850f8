package services

import (
	"context"
	"sync"
	"testing"

	"github.com/rxtech-lab/token-atlas/internal/apperrors"
	"github.com/rxtech-lab/token-atlas/internal/models"
	"github.com/rxtech-lab/token-atlas/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestAssignsOneFamilyAcrossCase(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	chains := NewChainService(db)
	families := NewFamilyService(db, tokens, chains)
	ctx := context.Background()

	result, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{
			tokenInput("ETH", "ethereum", "0xEEE", "ETH", "CANONICAL", true),
			tokenInput("WETH", "arbitrum", "0xAAA", "eth", "BRIDGED", false),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Families, 1, "case difference must not split the family")
	assert.Empty(t, result.Failures)

	family, err := families.GetFamilyByID(ctx, result.Families[0])
	require.NoError(t, err)
	assert.Equal(t, "ETH", family.BaseAsset)
	assert.Equal(t, 2, family.TotalVariants)
	assert.ElementsMatch(t, []string{"ethereum", "arbitrum"}, family.Chains)
	assert.Equal(t, "Ethereum Family", family.Name)

	require.NotNil(t, family.CanonicalTokenID)
	canonical, err := tokens.GetTokenByID(ctx, *family.CanonicalTokenID)
	require.NoError(t, err)
	assert.Equal(t, "ETH", canonical.Symbol)
	assert.Equal(t, "ethereum", canonical.Chain)
}

func TestIngestIdempotent(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	families := NewFamilyService(db, tokens, NewChainService(db))
	ctx := context.Background()

	batch := IngestRequest{
		Tokens: []TokenInput{
			tokenInput("USDC", "ethereum", "0x111", "USDC", "CANONICAL", true),
			tokenInput("USDC.e", "avalanche", "0x222", "USDC", "BRIDGED", false),
			tokenInput("axlUSDC", "polygon", "0x333", "USDC", "BRIDGED", false),
		},
	}

	first, err := families.Ingest(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)

	familyBefore, err := families.GetFamilyByID(ctx, first.Families[0])
	require.NoError(t, err)

	second, err := families.Ingest(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Updated)
	assert.Equal(t, first.Families, second.Families)

	familyAfter, err := families.GetFamilyByID(ctx, first.Families[0])
	require.NoError(t, err)
	assert.Equal(t, familyBefore.TotalVariants, familyAfter.TotalVariants)
	assert.Equal(t, familyBefore.CanonicalTokenID, familyAfter.CanonicalTokenID)
	assert.ElementsMatch(t, familyBefore.Chains, familyAfter.Chains)
}

func TestReingestUpdatesImageAndKeepsMembership(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	families := NewFamilyService(db, tokens, NewChainService(db))
	ctx := context.Background()

	eth := tokenInput("ETH", "ethereum", "0xEEE", "ETH", "CANONICAL", true)
	result, err := families.Ingest(ctx, IngestRequest{Tokens: []TokenInput{
		eth,
		tokenInput("WETH", "arbitrum", "0xAAA", "ETH", "BRIDGED", false),
	}})
	require.NoError(t, err)
	familyID := result.Families[0]

	eth.ImageURL = "/tokens/eth-new.png"
	second, err := families.Ingest(ctx, IngestRequest{Tokens: []TokenInput{eth}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, []string{familyID}, second.Families)

	// The family image is derived from the canonical token, so the
	// re-resolve picks up the new URL; membership is unchanged.
	family, err := families.GetFamilyByID(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, "/tokens/eth-new.png", family.ImageURL)
	assert.Equal(t, 2, family.TotalVariants)
}

func TestCanonicalTieBreakDeterministic(t *testing.T) {
	ctx := context.Background()

	// Both tokens claim canonical status on different chains. The earliest
	// created wins, repeatedly across runs.
	for run := 0; run < 3; run++ {
		db := setupTestDB(t)
		tokens := NewTokenService(db)
		families := NewFamilyService(db, tokens, NewChainService(db))

		result, err := families.Ingest(ctx, IngestRequest{
			Tokens: []TokenInput{
				tokenInput("SOL", "solana", "So111", "SOL", "CANONICAL", true),
				tokenInput("wSOL", "ethereum", "0x555", "SOL", "WRAPPED", true),
			},
		})
		require.NoError(t, err)

		family, err := families.GetFamilyByID(ctx, result.Families[0])
		require.NoError(t, err)
		require.NotNil(t, family.CanonicalTokenID)

		canonical, err := tokens.GetTokenByID(ctx, *family.CanonicalTokenID)
		require.NoError(t, err)
		assert.Equal(t, "SOL", canonical.Symbol)
	}
}

func TestCanonicalUniqueAfterResolve(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	families := NewFamilyService(db, tokens, NewChainService(db))
	ctx := context.Background()

	result, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{
			tokenInput("DAI", "ethereum", "0x6B1", "DAI", "CANONICAL", true),
			tokenInput("DAI", "optimism", "0xDA1", "DAI", "BRIDGED", true),
			tokenInput("sDAI", "ethereum", "0x83F", "DAI", "DERIVATIVE", false),
		},
	})
	require.NoError(t, err)

	family, err := families.GetFamilyByID(ctx, result.Families[0])
	require.NoError(t, err)
	require.NotNil(t, family.CanonicalTokenID)

	canonical, err := tokens.GetTokenByID(ctx, *family.CanonicalTokenID)
	require.NoError(t, err)
	assert.Equal(t, "ethereum", canonical.Chain)
	assert.Equal(t, models.VariantKindCanonical, canonical.Kind)
}

func TestNoCanonicalLeavesNilReference(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyService(db, NewTokenService(db), NewChainService(db))
	ctx := context.Background()

	result, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{
			tokenInput("WBTC", "ethereum", "0x2260", "BTC", "WRAPPED", false),
			tokenInput("tBTC", "ethereum", "0x1838", "BTC", "SYNTHETIC", false),
		},
	})
	require.NoError(t, err)

	family, err := families.GetFamilyByID(ctx, result.Families[0])
	require.NoError(t, err)
	assert.Nil(t, family.CanonicalTokenID)
	assert.Equal(t, 2, family.TotalVariants)
	// No canonical: the family image falls back to the first token's.
	assert.Equal(t, "/tokens/WBTC.png", family.ImageURL)
}

func TestIngestRejectsMissingTokens(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyService(db, NewTokenService(db), NewChainService(db))

	_, err := families.Ingest(context.Background(), IngestRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidInput))
}

func TestIngestEmptyBatchIsNoop(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyService(db, NewTokenService(db), NewChainService(db))

	result, err := families.Ingest(context.Background(), IngestRequest{Tokens: []TokenInput{}})
	require.NoError(t, err)
	assert.Zero(t, result.Inserted)
	assert.Zero(t, result.Updated)
	assert.Empty(t, result.Families)
}

func TestIngestCollectsPerTokenFailures(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyService(db, NewTokenService(db), NewChainService(db))
	ctx := context.Background()

	bad := tokenInput("BAD", "ethereum", "0x999", "BAD", "LIQUID", false)
	missing := TokenInput{Symbol: "NOPE"}

	result, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{
			tokenInput("UNI", "ethereum", "0x1F98", "UNI", "CANONICAL", true),
			bad,
			missing,
			tokenInput("UNI", "polygon", "0xB33", "UNI", "BRIDGED", false),
		},
	})
	require.NoError(t, err, "per-token failures must not abort the batch")

	assert.Equal(t, 2, result.Inserted)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, 1, result.Failures[0].Index)
	assert.Equal(t, 2, result.Failures[1].Index)
	require.Len(t, result.Families, 1)

	family, err := families.GetFamilyByID(ctx, result.Families[0])
	require.NoError(t, err)
	assert.Equal(t, 2, family.TotalVariants)
}

func TestIngestProcessesChainsFirst(t *testing.T) {
	db := setupTestDB(t)
	chains := NewChainService(db)
	families := NewFamilyService(db, NewTokenService(db), chains)
	ctx := context.Background()

	_, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{tokenInput("ETH", "ethereum", "0xEEE", "ETH", "CANONICAL", true)},
		Chains: []ChainInput{
			{ChainID: "ethereum", Name: "Ethereum", NativeCurrency: "ETH"},
			{ChainID: "arbitrum", Name: "Arbitrum One", NativeCurrency: "ETH"},
		},
	})
	require.NoError(t, err)

	registered, err := chains.ListChains(ctx)
	require.NoError(t, err)
	assert.Len(t, registered, 2)

	// Re-ingesting the same chains is idempotent.
	_, err = families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{},
		Chains: []ChainInput{{ChainID: "ethereum", Name: "Ethereum", NativeCurrency: "ETH"}},
	})
	require.NoError(t, err)
	registered, err = chains.ListChains(ctx)
	require.NoError(t, err)
	assert.Len(t, registered, 2)
}

func TestResolveFamilyAggregatesInvariant(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	families := NewFamilyService(db, tokens, NewChainService(db))
	ctx := context.Background()

	result, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{
			tokenInput("LINK", "ethereum", "0x514", "LINK", "CANONICAL", true),
			tokenInput("LINK", "polygon", "0xb0b", "LINK", "BRIDGED", false),
			tokenInput("LINK", "arbitrum", "0xf97", "LINK", "BRIDGED", false),
		},
	})
	require.NoError(t, err)

	family, err := families.ResolveFamily(ctx, result.Families[0])
	require.NoError(t, err)

	members, err := tokens.FindByFamily(ctx, family.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, len(members), family.TotalVariants)

	distinct := map[string]bool{}
	for _, m := range members {
		distinct[m.Chain] = true
	}
	assert.Len(t, family.Chains, len(distinct))
}

func TestResolveFamilyUnknownID(t *testing.T) {
	db := setupTestDB(t)
	families := NewFamilyService(db, NewTokenService(db), NewChainService(db))

	_, err := families.ResolveFamily(context.Background(), "deadbeef")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestResolveOrphanRetainsRecord(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	families := NewFamilyService(db, tokens, NewChainService(db))
	ctx := context.Background()

	result, err := families.Ingest(ctx, IngestRequest{
		Tokens: []TokenInput{tokenInput("AAVE", "ethereum", "0x7Fc", "AAVE", "CANONICAL", true)},
	})
	require.NoError(t, err)
	familyID := result.Families[0]

	// Admin purge happens outside the engine; simulate it directly.
	err = db.Where("family_id = ?", familyID).Delete(&models.Token{}).Error
	require.NoError(t, err)

	family, err := families.ResolveFamily(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, 0, family.TotalVariants)
	assert.Empty(t, family.Chains)
	assert.Nil(t, family.CanonicalTokenID)

	// The record stays addressable after orphaning.
	kept, err := families.GetFamilyByID(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, "AAVE", kept.BaseAsset)
}

func TestConcurrentIngestsKeepAggregatesConsistent(t *testing.T) {
	db := setupTestDB(t)
	tokens := NewTokenService(db)
	families := NewFamilyService(db, tokens, NewChainService(db))
	ctx := context.Background()

	addresses := []string{"0x01", "0x02", "0x03", "0x04", "0x05", "0x06", "0x07", "0x08"}
	chains := []string{"ethereum", "arbitrum", "optimism", "base", "polygon", "avalanche", "bsc", "linea"}

	var wg sync.WaitGroup
	for i := range addresses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := families.Ingest(ctx, IngestRequest{
				Tokens: []TokenInput{
					tokenInput("USDT", chains[i], addresses[i], "USDT", "BRIDGED", false),
				},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	familyID, err := utils.FamilyIdentifier("USDT")
	require.NoError(t, err)

	family, err := families.GetFamilyByID(ctx, familyID)
	require.NoError(t, err)
	assert.Equal(t, len(addresses), family.TotalVariants,
		"interleaved resolves must not regress the aggregate")
	assert.Len(t, family.Chains, len(chains))
}
