package types

// Block is an ordered list of transactions at one canonical position,
// as delivered by the block/ordering layer. The engine never reorders
// across block boundaries: the transaction index within Txs is the
// canonical order the scheduler partitions from.
type Block struct {
	Height uint64        `cramberry:"1"`
	Parent Hash          `cramberry:"2"`
	Txs    []Transaction `cramberry:"3"`
}

// NewBlock chains a block onto parent with the given transactions.
func NewBlock(parent *Block, txs []Transaction) *Block {
	return &Block{
		Height: parent.Height + 1,
		Parent: parent.Hash(),
		Txs:    txs,
	}
}

// ZeroBlock is the genesis position.
func ZeroBlock() *Block {
	return &Block{}
}

// Hash returns the content hash of the block.
func (b *Block) Hash() Hash {
	return hashValue(b)
}
