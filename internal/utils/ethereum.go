package utils

import "github.com/ethereum/go-ethereum/common"

// IsValidEthereumAddress reports whether the address is a well-formed hex
// address. Used by loading tools to warn about suspect EVM addresses; the
// engine itself trusts ingested input and never rewrites identity keys.
func IsValidEthereumAddress(address string) bool {
	return common.IsHexAddress(address)
}
