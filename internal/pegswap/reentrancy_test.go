package pegswap

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegswap-experiment/pegswap/internal/token"
	"github.com/pegswap-experiment/pegswap/internal/world"
)

// hostileToken is a working ledger that calls back into arbitrary code after
// each successful transfer.
type hostileToken struct {
	*token.Ledger
	afterTransferFrom func(ctx context.Context) error
	afterTransfer     func(ctx context.Context) error
	fail              error
}

func (h *hostileToken) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *uint256.Int) error {
	if h.fail != nil {
		return h.fail
	}
	if err := h.Ledger.TransferFrom(ctx, spender, from, to, amount); err != nil {
		return err
	}
	if hook := h.afterTransferFrom; hook != nil {
		h.afterTransferFrom = nil
		return hook(ctx)
	}
	return nil
}

func (h *hostileToken) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if h.fail != nil {
		return h.fail
	}
	if err := h.Ledger.Transfer(ctx, from, to, amount); err != nil {
		return err
	}
	if hook := h.afterTransfer; hook != nil {
		h.afterTransfer = nil
		return hook(ctx)
	}
	return nil
}

type hostileFixture struct {
	*fixture
	hBase    *hostileToken
	hWrapped *hostileToken
}

// newHostileFixture mirrors newFixture but routes the engine through hostile
// wrappers of both ledgers.
func newHostileFixture(t *testing.T) *hostileFixture {
	t.Helper()
	ctx := context.Background()

	st, err := world.NewMemoryState()
	require.NoError(t, err)

	base := token.NewLedger(st, baseAddr, "BASE", 18)
	wrapped := token.NewLedger(st, wrappedAddr, "WRAP", 18)
	hf := &hostileFixture{
		fixture: &fixture{
			ctx:     ctx,
			state:   st,
			tokens:  token.NewRegistry(),
			base:    base,
			wrapped: wrapped,
		},
		hBase:    &hostileToken{Ledger: base},
		hWrapped: &hostileToken{Ledger: wrapped},
	}
	require.NoError(t, hf.tokens.Register(hf.hBase))
	require.NoError(t, hf.tokens.Register(hf.hWrapped))

	hf.engine = New(st, engineAddr, hf.tokens)
	require.NoError(t, hf.engine.Initialize(ctx, owner))
	require.NoError(t, base.Mint(ctx, owner, u(totalIssuance)))
	require.NoError(t, wrapped.Mint(ctx, owner, u(totalIssuance)))
	require.NoError(t, base.Transfer(ctx, owner, user, u(depositAmount)))

	require.NoError(t, wrapped.Approve(ctx, owner, engineAddr, u(depositAmount)))
	require.NoError(t, hf.engine.AddLiquidity(ctx, owner, u(depositAmount), baseAddr, wrappedAddr))
	return hf
}

func TestReentrancy_DrainDuringPullRevertsEverything(t *testing.T) {
	hf := newHostileFixture(t)
	require.NoError(t, hf.base.Transfer(hf.ctx, owner, user, u(100)))
	require.NoError(t, hf.base.Approve(hf.ctx, user, engineAddr, u(200)))

	ch := make(chan TokensSwapped, 4)
	sub := hf.engine.Subscribe(ch)
	defer sub.Unsubscribe()

	var innerErr error
	hf.hBase.afterTransferFrom = func(ctx context.Context) error {
		// the outer swap has passed its pre-check but not yet debited
		innerErr = hf.engine.Swap(ctx, user, u(60), baseAddr, wrappedAddr)
		return nil
	}

	err := hf.engine.Swap(hf.ctx, user, u(60), baseAddr, wrappedAddr)
	require.NoError(t, innerErr, "nested swap itself is legitimate")
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	assert.Equal(t, uint64(depositAmount), hf.swappable(t, baseAddr, wrappedAddr))
	assert.Equal(t, uint64(0), hf.swappable(t, wrappedAddr, baseAddr))
	assert.Equal(t, uint64(200), hf.balance(t, hf.base, user))
	assert.Equal(t, uint64(0), hf.balance(t, hf.wrapped, user))
	assert.Len(t, ch, 0, "notifications of a reverted unit must not be delivered")
}

func TestReentrancy_PushSeesDebitedLedger(t *testing.T) {
	hf := newHostileFixture(t)
	require.NoError(t, hf.base.Approve(hf.ctx, user, engineAddr, u(depositAmount)))

	var seen *uint256.Int
	hf.hWrapped.afterTransfer = func(ctx context.Context) error {
		var err error
		seen, err = hf.engine.GetSwappableAmount(ctx, baseAddr, wrappedAddr)
		if err != nil {
			return err
		}
		return hf.engine.Swap(ctx, user, u(1), baseAddr, wrappedAddr)
	}

	err := hf.engine.Swap(hf.ctx, user, u(depositAmount), baseAddr, wrappedAddr)
	require.NotNil(t, seen)
	assert.True(t, seen.IsZero(), "ledger must be debited before tokens are released")

	assert.ErrorIs(t, err, ErrTokenTransferFailed)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	assert.Equal(t, uint64(depositAmount), hf.swappable(t, baseAddr, wrappedAddr))
	assert.Equal(t, uint64(depositAmount), hf.balance(t, hf.wrapped, engineAddr))
	assert.Equal(t, uint64(depositAmount), hf.balance(t, hf.base, user))
}

func TestReentrancy_PullHappensBeforeCredit(t *testing.T) {
	hf := newHostileFixture(t)
	require.NoError(t, hf.wrapped.Approve(hf.ctx, owner, engineAddr, u(50)))

	var seen *uint256.Int
	hf.hWrapped.afterTransferFrom = func(ctx context.Context) error {
		var err error
		seen, err = hf.engine.GetSwappableAmount(ctx, baseAddr, wrappedAddr)
		return err
	}

	require.NoError(t, hf.engine.AddLiquidity(hf.ctx, owner, u(50), baseAddr, wrappedAddr))
	require.NotNil(t, seen)
	assert.Equal(t, uint64(depositAmount), seen.Uint64(), "credit must follow the completed pull")
	assert.Equal(t, uint64(depositAmount+50), hf.swappable(t, baseAddr, wrappedAddr))
}

func TestReentrancy_NestedSuccessCommitsWithOuter(t *testing.T) {
	hf := newHostileFixture(t)
	require.NoError(t, hf.wrapped.Approve(hf.ctx, owner, engineAddr, u(50)))

	hf.hWrapped.afterTransferFrom = func(ctx context.Context) error {
		return hf.engine.TransferOwnership(ctx, owner, user)
	}
	require.NoError(t, hf.engine.AddLiquidity(hf.ctx, owner, u(50), baseAddr, wrappedAddr))

	s, err := hf.engine.OwnerState(hf.ctx)
	require.NoError(t, err)
	pending, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, user, pending)
}

func TestReentrancy_RejectingTokenAborts(t *testing.T) {
	hf := newHostileFixture(t)
	paused := errors.New("token paused")
	require.NoError(t, hf.base.Approve(hf.ctx, user, engineAddr, u(tradeAmount)))

	hf.hWrapped.fail = paused
	err := hf.engine.Swap(hf.ctx, user, u(tradeAmount), baseAddr, wrappedAddr)

	assert.ErrorIs(t, err, ErrTokenTransferFailed)
	assert.ErrorIs(t, err, paused)
	assert.Equal(t, uint64(depositAmount), hf.balance(t, hf.base, user))
	assert.Equal(t, uint64(depositAmount), hf.swappable(t, baseAddr, wrappedAddr))
	assert.Equal(t, uint64(0), hf.swappable(t, wrappedAddr, baseAddr))
}
