package types

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveAddressDeterministic(t *testing.T) {
	root := Address{}.Derive("stdlib")
	require.Equal(t, root, Address{}.Derive("stdlib"))
	require.NotEqual(t, root, Address{}.Derive("stdlib2"))
	require.False(t, root.IsZero())
}

func TestDeriveAddressSeparatesParents(t *testing.T) {
	a := Address{1}.Derive("x")
	b := Address{2}.Derive("x")
	require.NotEqual(t, a, b)
}

func TestAddressFromPublicKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	addr := AddressFromPublicKey(pub)
	require.Equal(t, []byte(pub), addr[:])
}

func TestAddressHexRoundtrip(t *testing.T) {
	a := Address{}.Derive("roundtrip")
	back, err := AddressFromHex(a.Hex())
	require.NoError(t, err)
	require.Equal(t, a, back)

	_, err = AddressFromHex("abcd")
	require.Error(t, err)
}

func TestAddressLess(t *testing.T) {
	var a, b Address
	b[31] = 1
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.False(t, a.Less(a))

	var c Address
	c[0] = 1
	require.True(t, b.Less(c))
}
