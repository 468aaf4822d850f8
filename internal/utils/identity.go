package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rxtech-lab/token-atlas/internal/apperrors"
)

// FamilyIdentifier derives the stable family identifier for a base asset.
// The asset is uppercased before hashing so identity is case-insensitive, but
// no trimming is performed: callers must supply clean tickers. The same asset
// always maps to the same identifier across restarts and batches.
func FamilyIdentifier(baseAsset string) (string, error) {
	if baseAsset == "" {
		return "", apperrors.InvalidInput("base asset must not be empty")
	}
	sum := sha256.Sum256([]byte(strings.ToUpper(baseAsset)))
	return hex.EncodeToString(sum[:]), nil
}
