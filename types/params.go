package types

// Limits are the protocol's structural and resource bounds. They are
// consensus parameters: every validating node must apply identical
// limits or evaluation outcomes diverge.
type Limits struct {
	// MaxTreeDepth bounds the height of any predicate tree attached
	// to an account or intent. Exceeding it is a structural
	// rejection, not a trap.
	MaxTreeDepth uint32 `cramberry:"1"`
	// MaxIntents bounds intents per transaction.
	MaxIntents uint32 `cramberry:"2"`
	// MaxProposals bounds proposed account mutations per transaction.
	MaxProposals uint32 `cramberry:"3"`
	// MaxModuleBytes bounds the size of a predicate module accepted
	// by the sandbox.
	MaxModuleBytes uint64 `cramberry:"4"`
	// MaxMemoryPages bounds a module instance's linear memory
	// (64 KiB pages).
	MaxMemoryPages uint32 `cramberry:"5"`
	// MaxInvocations bounds sandbox invocations per transaction.
	// Exhaustion mid-evaluation is a trap.
	MaxInvocations uint32 `cramberry:"6"`
	// MaxBatchesPerBlock bounds how many conflict-free batches one
	// block position may execute; transactions past it are deferred
	// to a later block.
	MaxBatchesPerBlock uint32 `cramberry:"7"`
}

// DefaultLimits returns the limits used by devnets and tests.
func DefaultLimits() Limits {
	return Limits{
		MaxTreeDepth:       16,
		MaxIntents:         64,
		MaxProposals:       128,
		MaxModuleBytes:     2 << 20,
		MaxMemoryPages:     64,
		MaxInvocations:     1024,
		MaxBatchesPerBlock: 8,
	}
}
