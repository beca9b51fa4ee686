package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Message types, per the data model's 8-variant protocol (coinbase
// additionally makes 9 counting itself, matching §1's "8-variant"
// description of the remaining signer-submitted forms).
const (
	MsgCoinbase = "coinbase"
	MsgSend     = "send"
	MsgMinter   = "minter"
	MsgMint     = "mint"
	MsgGet      = "get"
	MsgBurn     = "burn"
	MsgDrop     = "drop"
	MsgPrice    = "price"
	MsgBuy      = "buy"
)

// Payload is the decoded form of a message's canonical JSON bytes.
// Not every field is meaningful for every type; see the per-type rules
// in the validator. PublicKey is the raw public key bytes the
// signature is checked against; for coinbase/get/drop it must equal
// NullKey.
type Payload struct {
	Type        string  `json:"type"`
	StartHeight uint64  `json:"startHeight"`
	Timestamp   int64   `json:"timestamp"`
	PublicKey   []byte  `json:"publicKey"`
	Asset       string  `json:"asset,omitempty"`
	Quantity    int64   `json:"quantity,omitempty"`
	SrcAddress  Address `json:"srcAddress,omitempty"`
	DstAddress  Address `json:"dstAddress,omitempty"`
	Address     Address `json:"address,omitempty"`
	Price       *int64  `json:"price,omitempty"`
}

// Message is the wire form: canonical payload bytes (never
// re-serialized, per §9's "canonical message JSON" design note), its
// hex SHA-256 hash, and a signature over that hash.
type Message struct {
	Payload   []byte `json:"payload"`
	Hash      string `json:"hash"`
	Signature []byte `json:"signature"`
}

// HashPayload computes the hex SHA-256 hash of canonical payload bytes.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Decode parses the canonical payload bytes. It does not validate
// field values, only that the bytes are well-formed JSON.
func (m *Message) Decode() (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, errInvalid("message: malformed payload: %v", err)
	}
	return &p, nil
}

// hexDecodeHash decodes a hex-encoded hash back into raw bytes, the
// form the signature is actually computed over.
func hexDecodeHash(hash string) ([]byte, error) {
	return hex.DecodeString(hash)
}

// NewMessage canonically encodes payload, computes its hash, signs it
// under scheme with priv, and returns the finished wire message. Used
// by any test or client helper that needs to submit a message (the
// miner builds its coinbase message directly). p.PublicKey is always
// overwritten with the real public key derived from priv: callers
// never get a chance to broadcast the private key itself.
func NewMessage(scheme SignatureScheme, priv []byte, p Payload) (*Message, error) {
	p.PublicKey = scheme.PublicKey(priv)
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	hash := HashPayload(raw)
	sigBytes, err := hex.DecodeString(hash)
	if err != nil {
		return nil, err
	}
	sig, err := scheme.Sign(priv, sigBytes)
	if err != nil {
		return nil, err
	}
	return &Message{Payload: raw, Hash: hash, Signature: sig}, nil
}
