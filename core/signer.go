package core

import "crypto/ed25519"

// SignatureScheme is the abstract signature scheme the message model is
// built against. The spec explicitly treats ECDSA primitive
// implementation as an external collaborator; NullKey below is
// documented as "a marker, not a security construct" (§9) and is
// modeled as a fixed sentinel byte string recognized by IsNullKey
// rather than a real key. DefaultScheme backs it with ed25519 purely so
// the package tests have a concrete, deterministic scheme to
// exercise; any scheme satisfying this interface is protocol-valid.
type SignatureScheme interface {
	Sign(priv []byte, payloadHash []byte) (sig []byte, err error)
	Verify(pub []byte, payloadHash []byte, sig []byte) bool
	DeriveAddress(pub []byte) Address
	// PublicKey derives the raw public key bytes for priv. Messages
	// embed the result, never priv itself, in their wire PublicKey
	// field (§3: broadcast in cleartext with every message).
	PublicKey(priv []byte) []byte
}

// NullKey is the fixed, well-known scalar used to "sign" coinbase and
// get messages. It is never a real private key: first byte 0xFF, the
// remaining 31 bytes zero. Its corresponding "public key" for
// verification purposes is the same 32 bytes, by convention of this
// node's DefaultScheme.
var NullKey = func() []byte {
	k := make([]byte, 32)
	k[0] = 0xFF
	return k
}()

// IsNullKey reports whether pub is the well-known null public key.
func IsNullKey(pub []byte) bool {
	if len(pub) != len(NullKey) {
		return false
	}
	for i := range pub {
		if pub[i] != NullKey[i] {
			return false
		}
	}
	return true
}

// ed25519Scheme is the default concrete SignatureScheme.
type ed25519Scheme struct{}

// DefaultScheme is the signature scheme used unless a node is
// configured with an alternate implementation.
var DefaultScheme SignatureScheme = ed25519Scheme{}

func (ed25519Scheme) Sign(priv []byte, payloadHash []byte) ([]byte, error) {
	if IsNullKey(priv) {
		// The null key never produces a real signature; callers that
		// need to emit a coinbase/get message use a zero-length
		// placeholder and the corresponding Verify short-circuits on
		// IsNullKey(pub) below.
		return []byte{}, nil
	}
	if len(priv) != ed25519.SeedSize {
		return nil, errInvalid("signer: private key must be %d bytes", ed25519.SeedSize)
	}
	key := ed25519.NewKeyFromSeed(priv)
	return ed25519.Sign(key, payloadHash), nil
}

func (ed25519Scheme) Verify(pub []byte, payloadHash []byte, sig []byte) bool {
	if IsNullKey(pub) {
		return true
	}
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), payloadHash, sig)
}

func (ed25519Scheme) DeriveAddress(pub []byte) Address {
	if IsNullKey(pub) {
		return DeriveAddress(NullKey)
	}
	return DeriveAddress(pub)
}

// PublicKey derives the 32-byte ed25519 public key for a private key
// seed. The null key derives to itself, matching Sign/Verify's
// convention for coinbase/get messages.
func (ed25519Scheme) PublicKey(priv []byte) []byte {
	if IsNullKey(priv) {
		return NullKey
	}
	if len(priv) != ed25519.SeedSize {
		return nil
	}
	key := ed25519.NewKeyFromSeed(priv).Public().(ed25519.PublicKey)
	return []byte(key)
}
