package types

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// AddressLen is the fixed byte length of an account address.
const AddressLen = 32

// derivationDomain separates derived addresses from every other use
// of sha3 in the protocol. A collision between a derived address and
// a signable (public-key) address would require a preimage of this
// domain-tagged hash.
const derivationDomain = "loom/derived/v1"

// Address is a fixed-length opaque account identifier. An address may
// or may not correspond to a signable key: public-key addresses carry
// the raw ed25519 public key, derived addresses are domain-tagged
// hashes of a parent address and a tag.
type Address [AddressLen]byte

// AddressFromBytes converts a raw byte slice into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLen {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", AddressLen, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// AddressFromHex parses a 64-character hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("address hex: %w", err)
	}
	return AddressFromBytes(b)
}

// AddressFromPublicKey returns the signable address of an ed25519
// public key.
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	var a Address
	copy(a[:], pub)
	return a
}

// DeriveAddress computes the child address of parent under tag.
// Derivation is deterministic and collision-free with signable
// addresses: the result is a sha3-256 hash over a fixed domain
// prefix, so producing a keypair for it amounts to a preimage attack.
func DeriveAddress(parent Address, tag string) Address {
	h := sha3.New256()
	h.Write([]byte(derivationDomain))
	h.Write(parent[:])
	h.Write([]byte(tag))
	var a Address
	copy(a[:], h.Sum(nil))
	return a
}

// Derive is shorthand for DeriveAddress(a, tag).
func (a Address) Derive(tag string) Address {
	return DeriveAddress(a, tag)
}

// Hex returns the full lowercase hex encoding of the address.
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

// String returns an abbreviated form for logs and errors.
func (a Address) String() string {
	return hex.EncodeToString(a[:8])
}

// IsZero reports whether the address is all zeroes.
func (a Address) IsZero() bool { return a == Address{} }

// Less orders addresses lexicographically. This is the canonical
// order used for proposals, reference tables and commit application.
func (a Address) Less(b Address) bool {
	for i := 0; i < AddressLen; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
