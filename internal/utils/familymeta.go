package utils

import (
	"fmt"
	"strings"
)

var familyNames = map[string]string{
	"ETH":  "Ethereum Family",
	"BTC":  "Bitcoin Family",
	"SOL":  "Solana Family",
	"USDC": "USD Coin Family",
	"USDT": "Tether Family",
	"DAI":  "DAI Family",
	"LINK": "Chainlink Family",
	"UNI":  "Uniswap Family",
	"AAVE": "Aave Family",
}

var familyDescriptions = map[string]string{
	"ETH":  "All variants of Ethereum including wrapped, staked, and bridged versions across multiple chains.",
	"BTC":  "Native Bitcoin and all wrapped/bridged variants across multiple blockchains.",
	"SOL":  "Native Solana and all wrapped/bridged variants across multiple blockchains.",
	"USDC": "Circle's USD Coin across multiple chains, including native and bridged versions.",
	"USDT": "Tether's USD stablecoin across multiple blockchains.",
	"DAI":  "MakerDAO's decentralized stablecoin and its derivatives.",
	"LINK": "Chainlink token across multiple chains.",
	"UNI":  "Uniswap governance token across multiple chains.",
	"AAVE": "Aave governance token across multiple chains.",
}

// FamilyName returns the display name for a base asset, falling back to a
// templated name for tickers outside the well-known table.
func FamilyName(baseAsset string) string {
	if name, ok := familyNames[strings.ToUpper(baseAsset)]; ok {
		return name
	}
	return fmt.Sprintf("%s Family", baseAsset)
}

// FamilyDescription returns the description for a base asset with a templated
// fallback for unknown tickers.
func FamilyDescription(baseAsset string) string {
	if desc, ok := familyDescriptions[strings.ToUpper(baseAsset)]; ok {
		return desc
	}
	return fmt.Sprintf("All variants of %s across multiple chains.", baseAsset)
}
