package models

import "fmt"

// VariantKind describes how a token relates to its underlying asset.
type VariantKind string

const (
	VariantKindCanonical  VariantKind = "CANONICAL"
	VariantKindWrapped    VariantKind = "WRAPPED"
	VariantKindBridged    VariantKind = "BRIDGED"
	VariantKindDerivative VariantKind = "DERIVATIVE"
	VariantKindSynthetic  VariantKind = "SYNTHETIC"
)

// AllVariantKinds lists every valid kind in display order.
var AllVariantKinds = []VariantKind{
	VariantKindCanonical,
	VariantKindWrapped,
	VariantKindBridged,
	VariantKindDerivative,
	VariantKindSynthetic,
}

// Valid reports whether the kind is one of the closed set.
func (k VariantKind) Valid() bool {
	switch k {
	case VariantKindCanonical, VariantKindWrapped, VariantKindBridged,
		VariantKindDerivative, VariantKindSynthetic:
		return true
	}
	return false
}

// ParseVariantKind converts a raw string into a VariantKind. Unknown values
// are a construction-time error, not a silent fallback.
func ParseVariantKind(s string) (VariantKind, error) {
	k := VariantKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown variant kind %q", s)
	}
	return k, nil
}
