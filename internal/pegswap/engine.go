// Package pegswap implements the 1:1 token swap engine: owner-gated
// liquidity directions, swaps along funded directions and the two-step
// transfer of ownership.
package pegswap

import (
	"context"
	"fmt"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/logging"
	"github.com/pegswap-experiment/pegswap/internal/token"
	"github.com/pegswap-experiment/pegswap/internal/world"
)

// Resolver yields the gateway of a token address.
type Resolver interface {
	Resolve(addr common.Address) (token.Gateway, error)
}

// Observer receives engine outcomes, typically for metrics. Swap and
// liquidity callbacks fire only after the enclosing unit has committed.
type Observer interface {
	ObserveOperation(op string, code string, elapsed time.Duration)
	ObserveSwap(source, target common.Address, amount *uint256.Int)
	ObserveLiquidity(source, target common.Address, amount *uint256.Int)
}

// Engine is the swap engine bound to one address in the world state. It
// exclusively owns the ledger and owner state stored at that address.
type Engine struct {
	state     *world.State
	addr      common.Address
	tokens    Resolver
	ownership *Ownership
	ledger    *LiquidityLedger

	swapFeed event.Feed
	observer Observer
	log      *clog.Logger
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

func WithLogger(l *clog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New binds an engine to addr. Call Initialize once on a fresh state.
func New(state *world.State, addr common.Address, tokens Resolver, opts ...Option) *Engine {
	e := &Engine{
		state:     state,
		addr:      addr,
		tokens:    tokens,
		ownership: newOwnership(state, addr),
		ledger:    newLiquidityLedger(state, addr),
		log:       logging.With("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Address() common.Address { return e.addr }

// Initialize installs owner as the first owner of a fresh engine.
func (e *Engine) Initialize(ctx context.Context, owner common.Address) error {
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: zero owner", ErrUnauthorized)
	}
	return e.state.Execute(ctx, func(context.Context) error {
		if e.ownership.Load().Owner != (common.Address{}) {
			return ErrAlreadyInitialized
		}
		e.state.Touch(e.addr)
		e.ownership.store(OwnerState{Owner: owner})
		return nil
	})
}

// Subscribe delivers every committed TokensSwapped to ch. Delivery happens
// as the swap commits and waits for every receiver, so ch must be drained
// promptly.
func (e *Engine) Subscribe(ch chan<- TokensSwapped) event.Subscription {
	return e.swapFeed.Subscribe(ch)
}

// run executes fn as one unit and reports the outcome.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := e.state.Execute(ctx, fn)
	code := ErrorCode(err)
	if e.observer != nil {
		e.observer.ObserveOperation(op, code, time.Since(start))
	}
	if err != nil {
		e.log.Debug("operation failed", "op", op, "code", code, "err", err)
	}
	return err
}

// AddLiquidity funds (source, target) with amount of target tokens pulled
// from caller. Only the owner may fund a direction that is not yet known.
func (e *Engine) AddLiquidity(ctx context.Context, caller common.Address, amount *uint256.Int, source, target common.Address) error {
	d := NewDirection(source, target)
	return e.run(ctx, "addLiquidity", func(ctx context.Context) error {
		if !e.ledger.Known(d) {
			if err := e.ownership.RequireOwner(caller); err != nil {
				return fmt.Errorf("fund unknown direction %s: %w", d, err)
			}
		}
		// receive before crediting
		if err := e.pull(ctx, target, caller, amount); err != nil {
			return err
		}
		if err := e.ledger.Increase(d, amount); err != nil {
			return err
		}
		e.afterLiquidity(ctx, d)
		return nil
	})
}

// RemoveLiquidity withdraws amount of target tokens from (source, target)
// to the owner.
func (e *Engine) RemoveLiquidity(ctx context.Context, caller common.Address, amount *uint256.Int, source, target common.Address) error {
	d := NewDirection(source, target)
	return e.run(ctx, "removeLiquidity", func(ctx context.Context) error {
		if err := e.ownership.RequireOwner(caller); err != nil {
			return err
		}
		// debit before releasing
		if err := e.ledger.Decrease(d, amount); err != nil {
			return err
		}
		e.afterLiquidity(ctx, d)
		return e.push(ctx, target, caller, amount)
	})
}

// Swap trades amount of source tokens from caller for the same amount of
// target tokens. The consumed liquidity of (source, target) is credited to
// (target, source).
func (e *Engine) Swap(ctx context.Context, caller common.Address, amount *uint256.Int, source, target common.Address) error {
	d := NewDirection(source, target)
	return e.run(ctx, "swap", func(ctx context.Context) error {
		if available := e.ledger.AmountOf(d); available.Lt(amount) {
			return fmt.Errorf("%w: %s has %s, requested %s", ErrInsufficientLiquidity, d, available.Dec(), amount.Dec())
		}
		if err := e.pull(ctx, source, caller, amount); err != nil {
			return err
		}
		// re-checked here: the pull may have re-entered and drained d
		if err := e.ledger.Decrease(d, amount); err != nil {
			return err
		}
		if err := e.ledger.Increase(d.Reverse(), amount); err != nil {
			return err
		}
		e.afterLiquidity(ctx, d)
		e.afterLiquidity(ctx, d.Reverse())

		if err := e.push(ctx, target, caller, amount); err != nil {
			return err
		}
		return e.emitSwap(ctx, d, caller, amount)
	})
}

// RecoverStuckTokens sends amount of tok held by the engine to the owner.
// It works on raw custody and ignores the ledger entirely.
func (e *Engine) RecoverStuckTokens(ctx context.Context, caller common.Address, amount *uint256.Int, tok common.Address) error {
	return e.run(ctx, "recoverStuckTokens", func(ctx context.Context) error {
		if err := e.ownership.RequireOwner(caller); err != nil {
			return err
		}
		return e.push(ctx, tok, caller, amount)
	})
}

// TransferOwnership proposes candidate as the next owner.
func (e *Engine) TransferOwnership(ctx context.Context, caller, candidate common.Address) error {
	return e.run(ctx, "transferOwnership", func(ctx context.Context) error {
		s, err := e.ownership.Transfer(caller, candidate)
		if err != nil {
			return err
		}
		return e.emit("OwnershipTransferRequested", s.Owner, candidate)
	})
}

// AcceptOwnership completes a pending transfer. Only the pending owner may call it.
func (e *Engine) AcceptOwnership(ctx context.Context, caller common.Address) error {
	return e.run(ctx, "acceptOwnership", func(ctx context.Context) error {
		previous, err := e.ownership.Accept(caller)
		if err != nil {
			return err
		}
		e.state.AfterCommit(ctx, func() {
			e.log.Info("ownership transferred", "from", previous.Hex(), "to", caller.Hex())
		})
		return e.emit("OwnershipTransferred", previous, caller)
	})
}

// GetSwappableAmount returns the available amount of (source, target).
func (e *Engine) GetSwappableAmount(ctx context.Context, source, target common.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := e.state.View(ctx, func(context.Context) error {
		out = e.ledger.AmountOf(NewDirection(source, target))
		return nil
	})
	return out, err
}

func (e *Engine) Owner(ctx context.Context) (common.Address, error) {
	s, err := e.OwnerState(ctx)
	return s.Owner, err
}

func (e *Engine) OwnerState(ctx context.Context) (OwnerState, error) {
	var s OwnerState
	err := e.state.View(ctx, func(context.Context) error {
		s = e.ownership.Load()
		return nil
	})
	return s, err
}

// Liquidity pairs a known direction with its available amount.
type Liquidity struct {
	Direction
	Amount *uint256.Int `json:"amount"`
}

// Directions lists every known direction with its available amount.
func (e *Engine) Directions(ctx context.Context) ([]Liquidity, error) {
	var out []Liquidity
	err := e.state.View(ctx, func(context.Context) error {
		for _, d := range e.ledger.Directions() {
			out = append(out, Liquidity{Direction: d, Amount: e.ledger.AmountOf(d)})
		}
		return nil
	})
	return out, err
}

func (e *Engine) gateway(addr common.Address) (token.Gateway, error) {
	gw, err := e.tokens.Resolve(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenTransferFailed, err)
	}
	return gw, nil
}

// pull moves amount of tok from holder into engine custody using the
// allowance holder granted the engine.
func (e *Engine) pull(ctx context.Context, tok, holder common.Address, amount *uint256.Int) error {
	gw, err := e.gateway(tok)
	if err != nil {
		return err
	}
	if err := gw.TransferFrom(ctx, e.addr, holder, e.addr, amount); err != nil {
		return fmt.Errorf("%w: pull %s from %s: %w", ErrTokenTransferFailed, amount.Dec(), holder.Hex(), err)
	}
	return nil
}

// push moves amount of tok out of engine custody to recipient.
func (e *Engine) push(ctx context.Context, tok, recipient common.Address, amount *uint256.Int) error {
	gw, err := e.gateway(tok)
	if err != nil {
		return err
	}
	if err := gw.Transfer(ctx, e.addr, recipient, amount); err != nil {
		return fmt.Errorf("%w: push %s to %s: %w", ErrTokenTransferFailed, amount.Dec(), recipient.Hex(), err)
	}
	return nil
}

func (e *Engine) afterLiquidity(ctx context.Context, d Direction) {
	if e.observer == nil {
		return
	}
	amount := e.ledger.AmountOf(d)
	e.state.AfterCommit(ctx, func() {
		e.observer.ObserveLiquidity(d.Source, d.Target, amount)
	})
}

func (e *Engine) emitSwap(ctx context.Context, d Direction, caller common.Address, amount *uint256.Int) error {
	log, err := engineABI.NewLog(e.addr, "TokensSwapped", d.Source, d.Target, caller, amount.ToBig(), amount.ToBig())
	if err != nil {
		return err
	}
	log.BlockNumber = world.BlockNumber(ctx)
	log = e.state.AddLog(log)

	ev := TokensSwapped{
		Source:    d.Source,
		Target:    d.Target,
		Caller:    caller,
		AmountIn:  amount.Clone(),
		AmountOut: amount.Clone(),
		TxHash:    log.TxHash,
		LogIndex:  log.Index,
		Block:     world.BlockNumber(ctx),
	}
	e.state.AfterCommit(ctx, func() {
		e.log.Info("tokens swapped", "direction", d.String(), "caller", caller.Hex(), "amount", ev.AmountIn.Dec())
		if e.observer != nil {
			e.observer.ObserveSwap(d.Source, d.Target, ev.AmountIn)
		}
		e.swapFeed.Send(ev)
	})
	return nil
}

func (e *Engine) emit(name string, args ...interface{}) error {
	log, err := engineABI.NewLog(e.addr, name, args...)
	if err != nil {
		return err
	}
	e.state.AddLog(log)
	return nil
}
