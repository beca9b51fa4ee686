package core

import "testing"

// seedFor returns a deterministic 32-byte ed25519 seed, distinct per
// tag. The first byte is kept below 0xFF so it is never mistaken for
// NullKey.
func seedFor(tag byte) []byte {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = tag
	}
	return seed
}

func addrFor(t *testing.T, scheme SignatureScheme, priv []byte) Address {
	t.Helper()
	return scheme.DeriveAddress(scheme.PublicKey(priv))
}

func mustSign(t *testing.T, scheme SignatureScheme, priv []byte, p Payload) *Message {
	t.Helper()
	msg, err := NewMessage(scheme, priv, p)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	return msg
}

func coinbaseMsg(t *testing.T, scheme SignatureScheme, startHeight uint64, ts int64, to Address) *Message {
	t.Helper()
	return mustSign(t, scheme, NullKey, Payload{
		Type:        MsgCoinbase,
		StartHeight: startHeight,
		Timestamp:   ts,
		PublicKey:   NullKey,
		Asset:       CRD,
		Quantity:    CoinbaseQuantity,
		Address:     to,
	})
}
