package types

// GenesisAccount seeds one account at bootstrap.
type GenesisAccount struct {
	Address Address `cramberry:"1"`
	Account Account `cramberry:"2"`
}

// GenesisDoc is the bootstrap configuration of a chain: consensus
// limits and the initial account set, including the standard
// predicate library under its well-known root address. The library
// registry is populated exactly once here and threaded through as
// explicit configuration, never as a mutable global.
type GenesisDoc struct {
	ChainID string  `cramberry:"1"`
	Limits  Limits  `cramberry:"2"`
	StdLib  Address `cramberry:"3"`
	// Accounts in canonical address order.
	Accounts []GenesisAccount `cramberry:"4"`
}
