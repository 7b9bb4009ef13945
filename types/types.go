// Package types defines all core data types for the loom ledger:
// addresses, accounts, predicates, predicate trees, intents,
// transactions and blocks.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration) are handled in the transport packages,
// evaluation and scheduling in the engine packages.
package types

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Hash is a 32-byte sha3-256 digest.
type Hash [32]byte

// HashOf computes the sha3-256 digest of data.
func HashOf(data []byte) Hash {
	return Hash(sha3.Sum256(data))
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:8])
}

// IsZero reports whether the hash is all zeroes.
func (h Hash) IsZero() bool { return h == Hash{} }

// hashValue cramberry-marshals v and hashes the encoding.
// All content hashes in loom are defined this way so that any two
// conforming implementations agree on them.
func hashValue(v any) Hash {
	data, err := cramberry.Marshal(v)
	if err != nil {
		// All loom wire types are marshalable by construction.
		panic("types: unmarshalable wire value: " + err.Error())
	}
	return HashOf(data)
}
