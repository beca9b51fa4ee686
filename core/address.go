package core

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Address is Base58-of-SHA256-of-public-key, per the data model. It is
// an opaque string everywhere outside this file.
type Address string

// DeriveAddress computes the address owned by a public key.
func DeriveAddress(pubKey []byte) Address {
	sum := sha256.Sum256(pubKey)
	return Address(base58.Encode(sum[:]))
}

// String returns the address as a plain string, satisfying
// fmt.Stringer for logging and JSON map keys.
func (a Address) String() string { return string(a) }
