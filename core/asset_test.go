package core

import "testing"

func TestAssetClassification(t *testing.T) {
	cases := []struct {
		asset        string
		base, basic, mint bool
	}{
		{"CRD", true, true, false},
		{"GOLD-1", true, true, false},
		{"gold", false, false, false},
		{"GOLD.RING", false, true, false},
		{"GOLD:mint", false, false, true},
		{"GOLD.RING:mint", false, false, true},
		{"GOLD..RING", false, false, false},
	}
	for _, c := range cases {
		if got := IsBaseAsset(c.asset); got != c.base {
			t.Errorf("IsBaseAsset(%q) = %v, want %v", c.asset, got, c.base)
		}
		if got := IsBasicAsset(c.asset); got != c.basic {
			t.Errorf("IsBasicAsset(%q) = %v, want %v", c.asset, got, c.basic)
		}
		if got := IsMintAsset(c.asset); got != c.mint {
			t.Errorf("IsMintAsset(%q) = %v, want %v", c.asset, got, c.mint)
		}
	}
}

func TestMintAssetRoundTrip(t *testing.T) {
	if got := MintAssetOf("GOLD"); got != "GOLD:mint" {
		t.Fatalf("MintAssetOf: got %q", got)
	}
	base, ok := BaseAssetOfMint("GOLD:mint")
	if !ok || base != "GOLD" {
		t.Fatalf("BaseAssetOfMint: got (%q, %v)", base, ok)
	}
	if _, ok := BaseAssetOfMint("GOLD"); ok {
		t.Fatalf("BaseAssetOfMint should reject a non-mint asset")
	}
}

func TestBaseOfBasic(t *testing.T) {
	if got := BaseOfBasic("GOLD.RING"); got != "GOLD" {
		t.Fatalf("BaseOfBasic(GOLD.RING): got %q", got)
	}
	if got := BaseOfBasic("GOLD"); got != "GOLD" {
		t.Fatalf("BaseOfBasic(GOLD): got %q", got)
	}
}
