package world

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type frameKey struct{}

type txKey struct{}

type blockKey struct{}

// frame is the bookkeeping of one outermost execution unit.
type frame struct {
	state *State
	after []func()
}

// WithTx attributes every log produced by units run under ctx to hash.
func WithTx(ctx context.Context, hash common.Hash) context.Context {
	return context.WithValue(ctx, txKey{}, hash)
}

// TxHash returns the transaction hash attached by WithTx, or the zero hash.
func TxHash(ctx context.Context) common.Hash {
	h, _ := ctx.Value(txKey{}).(common.Hash)
	return h
}

// WithBlock records the number of the block that units run under ctx will be
// sealed into.
func WithBlock(ctx context.Context, number uint64) context.Context {
	return context.WithValue(ctx, blockKey{}, number)
}

// BlockNumber returns the block attached by WithBlock, or 0.
func BlockNumber(ctx context.Context) uint64 {
	n, _ := ctx.Value(blockKey{}).(uint64)
	return n
}

func (s *State) activeFrame(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	if f != nil && f.state == s {
		return f
	}
	return nil
}

// Execute runs fn as one indivisible unit: either every state write and log
// made by fn is kept, or, if fn returns an error, none of them are.
//
// A call made with a ctx that already belongs to a running unit (a re-entrant
// call from inside a token transfer) nests inside that unit rather than
// waiting on the lock. A failing nested call reverts its own writes and the
// error is returned to the enclosing unit.
func (s *State) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if f := s.activeFrame(ctx); f != nil {
		snap := s.stateDB.Snapshot()
		mark := len(f.after)
		if err := fn(ctx); err != nil {
			s.stateDB.RevertToSnapshot(snap)
			f.after = f.after[:mark]
			return err
		}
		return nil
	}

	f := &frame{state: s}
	if err := s.runUnit(ctx, f, fn); err != nil {
		return err
	}
	for _, hook := range f.after {
		hook()
	}
	return nil
}

func (s *State) runUnit(ctx context.Context, f *frame, fn func(ctx context.Context) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := TxHash(ctx)
	s.stateDB.SetTxContext(hash, s.txIndex)
	if hash != (common.Hash{}) {
		s.txIndex++
	}

	snap := s.stateDB.Snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.stateDB.RevertToSnapshot(snap)
			panic(r)
		}
	}()

	if err = fn(context.WithValue(ctx, frameKey{}, f)); err != nil {
		s.stateDB.RevertToSnapshot(snap)
		return err
	}
	s.stateDB.Finalise(false)
	return nil
}

// View runs fn against the current state and discards anything it writes.
func (s *State) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.activeFrame(ctx) != nil {
		snap := s.stateDB.Snapshot()
		defer s.stateDB.RevertToSnapshot(snap)
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.stateDB.Snapshot()
	defer s.stateDB.RevertToSnapshot(snap)
	return fn(context.WithValue(ctx, frameKey{}, &frame{state: s}))
}

// AfterCommit schedules hook to run once the outermost unit of ctx has
// committed. Hooks registered by a nested call that later fails are dropped.
// Outside any unit the hook runs immediately.
func (s *State) AfterCommit(ctx context.Context, hook func()) {
	if f := s.activeFrame(ctx); f != nil {
		f.after = append(f.after, hook)
		return
	}
	hook()
}
