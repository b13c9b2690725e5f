package world

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	testAddr = common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	testSlot = common.HexToHash("0x01")
	testVal  = common.HexToHash("0x42")
)

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewMemoryState()
	if err != nil {
		t.Fatalf("failed to create state: %v", err)
	}
	return s
}

func read(t *testing.T, s *State, addr common.Address, slot common.Hash) common.Hash {
	t.Helper()
	var got common.Hash
	if err := s.View(context.Background(), func(context.Context) error {
		got = s.GetState(addr, slot)
		return nil
	}); err != nil {
		t.Fatalf("view failed: %v", err)
	}
	return got
}

// ===== Execute Tests =====

func TestExecute_CommitsOnSuccess(t *testing.T) {
	s := newTestState(t)

	err := s.Execute(context.Background(), func(context.Context) error {
		s.SetState(testAddr, testSlot, testVal)
		return nil
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if got := read(t, s, testAddr, testSlot); got != testVal {
		t.Errorf("slot mismatch: got %s, want %s", got.Hex(), testVal.Hex())
	}
}

func TestExecute_RevertsOnError(t *testing.T) {
	s := newTestState(t)
	boom := errors.New("boom")

	err := s.Execute(context.Background(), func(context.Context) error {
		s.SetState(testAddr, testSlot, testVal)
		s.AddLog(&types.Log{Address: testAddr})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if got := read(t, s, testAddr, testSlot); got != (common.Hash{}) {
		t.Errorf("write should have been reverted, got %s", got.Hex())
	}
	if logs := s.Logs(common.Hash{}); len(logs) != 0 {
		t.Errorf("expected no logs after revert, got %d", len(logs))
	}
}

func TestExecute_RevertsOnPanic(t *testing.T) {
	s := newTestState(t)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = s.Execute(context.Background(), func(context.Context) error {
			s.SetState(testAddr, testSlot, testVal)
			panic("boom")
		})
	}()

	if got := read(t, s, testAddr, testSlot); got != (common.Hash{}) {
		t.Errorf("write should have been reverted, got %s", got.Hex())
	}
}

// TestExecute_NestedFailureKeepsOuterWrites verifies a failing re-entrant
// call only reverts its own writes
func TestExecute_NestedFailureKeepsOuterWrites(t *testing.T) {
	s := newTestState(t)
	innerSlot := common.HexToHash("0x02")

	err := s.Execute(context.Background(), func(ctx context.Context) error {
		s.SetState(testAddr, testSlot, testVal)

		nested := s.Execute(ctx, func(context.Context) error {
			s.SetState(testAddr, innerSlot, testVal)
			return errors.New("inner failure")
		})
		if nested == nil {
			t.Error("expected nested error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer execute failed: %v", err)
	}

	if got := read(t, s, testAddr, testSlot); got != testVal {
		t.Errorf("outer write lost: got %s", got.Hex())
	}
	if got := read(t, s, testAddr, innerSlot); got != (common.Hash{}) {
		t.Errorf("inner write should be reverted, got %s", got.Hex())
	}
}

func TestExecute_NestedSuccessRevertedByOuterFailure(t *testing.T) {
	s := newTestState(t)

	_ = s.Execute(context.Background(), func(ctx context.Context) error {
		if err := s.Execute(ctx, func(context.Context) error {
			s.SetState(testAddr, testSlot, testVal)
			return nil
		}); err != nil {
			t.Fatalf("nested execute failed: %v", err)
		}
		return errors.New("outer failure")
	})

	if got := read(t, s, testAddr, testSlot); got != (common.Hash{}) {
		t.Errorf("nested write should be reverted with outer unit, got %s", got.Hex())
	}
}

// ===== AfterCommit Tests =====

func TestAfterCommit_RunsOnlyOnSuccess(t *testing.T) {
	s := newTestState(t)
	var fired []string

	_ = s.Execute(context.Background(), func(ctx context.Context) error {
		s.AfterCommit(ctx, func() { fired = append(fired, "failed") })
		return errors.New("fail")
	})
	_ = s.Execute(context.Background(), func(ctx context.Context) error {
		s.AfterCommit(ctx, func() { fired = append(fired, "ok") })
		_ = s.Execute(ctx, func(ctx context.Context) error {
			s.AfterCommit(ctx, func() { fired = append(fired, "dropped") })
			return errors.New("nested fail")
		})
		return nil
	})

	if len(fired) != 1 || fired[0] != "ok" {
		t.Errorf("unexpected hooks fired: %v", fired)
	}
}

func TestAfterCommit_OutsideUnitRunsImmediately(t *testing.T) {
	s := newTestState(t)
	ran := false
	s.AfterCommit(context.Background(), func() { ran = true })
	if !ran {
		t.Error("hook outside a unit should run immediately")
	}
}

// ===== View Tests =====

func TestView_DiscardsWrites(t *testing.T) {
	s := newTestState(t)

	_ = s.View(context.Background(), func(context.Context) error {
		s.SetState(testAddr, testSlot, testVal)
		return nil
	})

	if got := read(t, s, testAddr, testSlot); got != (common.Hash{}) {
		t.Errorf("view must not persist writes, got %s", got.Hex())
	}
}

// ===== Logs Tests =====

func TestLogs_AttributedToTx(t *testing.T) {
	s := newTestState(t)
	txA := common.HexToHash("0xaa")
	txB := common.HexToHash("0xbb")

	for _, tx := range []common.Hash{txA, txB, txA} {
		ctx := WithTx(context.Background(), tx)
		if err := s.Execute(ctx, func(context.Context) error {
			s.AddLog(&types.Log{Address: testAddr, Topics: []common.Hash{tx}})
			return nil
		}); err != nil {
			t.Fatalf("execute failed: %v", err)
		}
	}

	if got := len(s.Logs(txA)); got != 2 {
		t.Errorf("expected 2 logs for txA, got %d", got)
	}
	logs := s.Logs(txB)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log for txB, got %d", len(logs))
	}
	if logs[0].TxHash != txB {
		t.Errorf("log tx hash mismatch: got %s", logs[0].TxHash.Hex())
	}

	// copies must not alias internal state
	logs[0].Topics[0] = common.Hash{}
	if s.Logs(txB)[0].Topics[0] != txB {
		t.Error("Logs should return deep copies")
	}
}

// ===== Persistence Tests =====

func TestOpenState_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := OpenState(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Execute(context.Background(), func(context.Context) error {
		s.Touch(testAddr)
		s.SetState(testAddr, testSlot, testVal)
		return nil
	}); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	root, err := s.Commit(1)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, RootFile))
	if err != nil {
		t.Fatalf("root file missing: %v", err)
	}
	if string(data) != root.Hex() {
		t.Errorf("root file mismatch: got %s, want %s", data, root.Hex())
	}

	reopened, err := OpenState(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	if got := read(t, reopened, testAddr, testSlot); got != testVal {
		t.Errorf("slot lost across reopen: got %s", got.Hex())
	}
	if reopened.Root() != root {
		t.Errorf("root mismatch after reopen: got %s, want %s", reopened.Root().Hex(), root.Hex())
	}
}

func TestParseRoot(t *testing.T) {
	valid := "0xab" + strings.Repeat("0", 62)
	if _, err := ParseRoot(valid + "\n"); err != nil {
		t.Errorf("expected valid root, got %v", err)
	}
	for _, bad := range []string{"", "0x12", "zz" + valid[2:]} {
		if _, err := ParseRoot(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
