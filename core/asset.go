package core

import (
	"regexp"
	"strings"
)

// Asset identifier lexical classes, per the data model:
//
//	base asset:  [A-Z0-9] with non-terminal '-' allowed         e.g. CRD, GOLD-1
//	basic asset: base asset optionally '.'-suffixed by a base   e.g. GOLD.RING
//	mint asset:  basic asset suffixed with ":mint"              e.g. GOLD:mint
var (
	baseAssetRe = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)
)

const mintSuffix = ":mint"

// IsBaseAsset reports whether s is a valid base asset identifier.
func IsBaseAsset(s string) bool {
	return s != "" && baseAssetRe.MatchString(s)
}

// IsBasicAsset reports whether s is a valid basic asset identifier: a
// base asset, or a base asset dot-suffixed by another base asset.
func IsBasicAsset(s string) bool {
	if IsBaseAsset(s) {
		return true
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return false
	}
	return IsBaseAsset(parts[0]) && IsBaseAsset(parts[1])
}

// IsMintAsset reports whether s is a mint-asset identifier: a basic
// asset suffixed with ":mint".
func IsMintAsset(s string) bool {
	if !strings.HasSuffix(s, mintSuffix) {
		return false
	}
	return IsBasicAsset(strings.TrimSuffix(s, mintSuffix))
}

// MintAssetOf returns the mint-asset name for base asset X: "X:mint".
// Holding one unit of it is the right to mint X.
func MintAssetOf(baseAsset string) string {
	return baseAsset + mintSuffix
}

// BaseAssetOfMint strips the ":mint" suffix, returning ok=false if s is
// not a mint asset.
func BaseAssetOfMint(s string) (string, bool) {
	if !IsMintAsset(s) {
		return "", false
	}
	return strings.TrimSuffix(s, mintSuffix), true
}

// BaseOfBasic returns the leading base asset of a basic asset
// identifier, e.g. "GOLD" for both "GOLD" and "GOLD.RING".
func BaseOfBasic(s string) string {
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		return s[:idx]
	}
	return s
}
