package engine

import (
	"testing"
)

func TestPhaseGuard_HappyPath(t *testing.T) {
	g := NewPhaseGuard()

	if !g.IsIdle() {
		t.Fatal("expected Idle at start")
	}

	// Idle → Executing → Executed (ExecuteBlock)
	g.AcquireExecute()
	g.CompleteExecute()

	// Executed → Committing → Idle (Commit)
	g.AcquireCommit()
	g.CompleteCommit()

	if !g.IsIdle() {
		t.Fatal("expected Idle after commit")
	}

	// Should be able to cycle again.
	g.AcquireExecute()
	g.CompleteExecute()
	g.AcquireCommit()
	g.CompleteCommit()

	if !g.IsIdle() {
		t.Fatal("expected Idle after second cycle")
	}
}

func TestPhaseGuard_CommitWithoutExecute(t *testing.T) {
	g := NewPhaseGuard()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for commit without execute")
		}
	}()

	g.AcquireCommit()
}

func TestPhaseGuard_ExecuteWhileExecuted(t *testing.T) {
	g := NewPhaseGuard()
	g.AcquireExecute()
	g.CompleteExecute()

	// Now in Executed state — calling ExecuteBlock again should panic.
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic for execute without idle")
		}
	}()

	g.AcquireExecute()
}

func TestPhaseGuard_FailExecute(t *testing.T) {
	g := NewPhaseGuard()

	// Execute fails → should roll back to Idle.
	g.AcquireExecute()
	g.FailExecute()

	if !g.IsIdle() {
		t.Fatal("expected Idle after failed execute")
	}

	// Should be able to execute again.
	g.AcquireExecute()
	g.CompleteExecute()
	g.AcquireCommit()
	g.CompleteCommit()
}

func TestPhaseGuard_State(t *testing.T) {
	g := NewPhaseGuard()

	if g.State() != "Idle" {
		t.Errorf("expected Idle, got %s", g.State())
	}

	g.AcquireExecute()

	if g.State() != "Executing" {
		t.Errorf("expected Executing, got %s", g.State())
	}

	g.CompleteExecute()

	if g.State() != "Executed" {
		t.Errorf("expected Executed, got %s", g.State())
	}
}
