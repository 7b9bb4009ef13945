package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// phase represents a state in the engine's block lifecycle.
type phase uint32

const (
	// phaseIdle: no block in flight. Concurrent calls allowed:
	// SubmitTransaction, Account, Status. Sequential call allowed:
	// ExecuteBlock.
	phaseIdle phase = iota
	// phaseExecuting: ExecuteBlock has been called. Waiting for it to
	// return. No new ExecuteBlock or Commit calls until complete.
	phaseExecuting
	// phaseExecuted: ExecuteBlock returned. Commit is the only valid
	// next sequential call.
	phaseExecuted
	// phaseCommitting: Commit has been called. Waiting for it to
	// return.
	phaseCommitting
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "Idle"
	case phaseExecuting:
		return "Executing"
	case phaseExecuted:
		return "Executed"
	case phaseCommitting:
		return "Committing"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// PhaseGuard enforces the execute/commit call ordering. The engine
// wraps every block transition with the guard so a misbehaving driver
// fails loudly instead of corrupting state.
type PhaseGuard struct {
	state atomic.Uint32
	// Mutex for sequential calls (ExecuteBlock, Commit).
	seqMu sync.Mutex
}

// NewPhaseGuard creates a guard in the Idle state.
func NewPhaseGuard() *PhaseGuard {
	g := &PhaseGuard{}
	g.state.Store(uint32(phaseIdle))
	return g
}

// State returns the current phase name.
func (g *PhaseGuard) State() string {
	return phase(g.state.Load()).String()
}

// AcquireExecute transitions Idle → Executing.
// Blocks if another sequential operation is in progress.
// Panics if not in Idle state.
func (g *PhaseGuard) AcquireExecute() {
	g.seqMu.Lock()
	if p := phase(g.state.Load()); p != phaseIdle {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("github.com/intentloom/loom: ExecuteBlock called in phase %s (expected Idle)", p))
	}
	g.state.Store(uint32(phaseExecuting))
}

// CompleteExecute transitions Executing → Executed.
func (g *PhaseGuard) CompleteExecute() {
	g.state.Store(uint32(phaseExecuted))
	g.seqMu.Unlock()
}

// FailExecute transitions Executing → Idle on error, allowing retry.
func (g *PhaseGuard) FailExecute() {
	g.state.Store(uint32(phaseIdle))
	g.seqMu.Unlock()
}

// AcquireCommit transitions Executed → Committing.
// Panics if not in Executed state.
func (g *PhaseGuard) AcquireCommit() {
	g.seqMu.Lock()
	if p := phase(g.state.Load()); p != phaseExecuted {
		g.seqMu.Unlock()
		panic(fmt.Sprintf("github.com/intentloom/loom: Commit called in phase %s (expected Executed)", p))
	}
	g.state.Store(uint32(phaseCommitting))
}

// CompleteCommit transitions Committing → Idle.
func (g *PhaseGuard) CompleteCommit() {
	g.state.Store(uint32(phaseIdle))
	g.seqMu.Unlock()
}

// IsIdle returns true if no block transition is in flight.
func (g *PhaseGuard) IsIdle() bool {
	return phase(g.state.Load()) == phaseIdle
}
