package core

import "testing"

func TestIsNullKey(t *testing.T) {
	if !IsNullKey(NullKey) {
		t.Fatalf("NullKey must report as the null key")
	}
	other := make([]byte, 32)
	if IsNullKey(other) {
		t.Fatalf("an all-zero key is not the null key")
	}
}

func TestEd25519SchemeSignVerifyRoundTrip(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(70)
	pub := scheme.PublicKey(priv)
	payload := []byte("hello world, this is 32+ bytes!")
	hash := HashPayload(payload)
	sigBytes, err := hexDecodeHash(hash)
	if err != nil {
		t.Fatalf("hexDecodeHash: %v", err)
	}
	sig, err := scheme.Sign(priv, sigBytes)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !scheme.Verify(pub, sigBytes, sig) {
		t.Fatalf("Verify should accept a signature over the same hash")
	}
	if scheme.Verify(pub, sigBytes, append([]byte{}, sig[:len(sig)-1]...)) {
		t.Fatalf("Verify should reject a truncated signature")
	}
	if scheme.Verify(priv, sigBytes, sig) {
		t.Fatalf("Verify must reject the private key seed used in place of the public key")
	}
}

func TestEd25519SchemeNullKeyVerifiesAnything(t *testing.T) {
	scheme := DefaultScheme
	if !scheme.Verify(NullKey, []byte("anything"), nil) {
		t.Fatalf("the null key's signature is a marker, always accepted by Verify")
	}
}

func TestPublicKeyDerivation(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(73)
	pub1 := scheme.PublicKey(priv)
	pub2 := scheme.PublicKey(priv)
	if string(pub1) != string(pub2) {
		t.Fatalf("PublicKey must be deterministic")
	}
	if string(pub1) == string(priv) {
		t.Fatalf("the derived public key must not equal the private key seed")
	}
	if string(scheme.PublicKey(NullKey)) != string(NullKey) {
		t.Fatalf("the null key must derive to itself")
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	scheme := DefaultScheme
	priv := seedFor(71)
	pub := scheme.PublicKey(priv)
	a1 := scheme.DeriveAddress(pub)
	a2 := scheme.DeriveAddress(pub)
	if a1 != a2 {
		t.Fatalf("DeriveAddress must be deterministic")
	}
	other := scheme.DeriveAddress(scheme.PublicKey(seedFor(72)))
	if a1 == other {
		t.Fatalf("distinct keys should derive distinct addresses")
	}
}
