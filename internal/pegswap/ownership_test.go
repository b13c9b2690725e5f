package pegswap

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegswap-experiment/pegswap/internal/world"
)

func TestOwnership_TwoStepTransfer(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.TransferOwnership(f.ctx, owner, user))

	s, err := f.engine.OwnerState(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, s.Owner, "owner is unchanged until accepted")
	pending, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, user, pending)

	// the current owner keeps full privilege in the intermediate state
	require.NoError(t, f.engine.AddLiquidity(f.ctx, owner, u(0), baseAddr, wrappedAddr))

	require.NoError(t, f.engine.AcceptOwnership(f.ctx, user))

	s, err = f.engine.OwnerState(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, user, s.Owner)
	_, ok = s.Pending()
	assert.False(t, ok)

	assert.ErrorIs(t, f.engine.RemoveLiquidity(f.ctx, owner, u(0), baseAddr, wrappedAddr), ErrUnauthorized)
	assert.NoError(t, f.engine.RemoveLiquidity(f.ctx, user, u(0), baseAddr, wrappedAddr))
}

func TestOwnership_OnlyOwnerProposes(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.TransferOwnership(f.ctx, user, user), ErrUnauthorized)

	s, err := f.engine.OwnerState(f.ctx)
	require.NoError(t, err)
	_, ok := s.Pending()
	assert.False(t, ok)
}

func TestOwnership_OnlyPendingAccepts(t *testing.T) {
	f := newFixture(t)
	stranger := common.HexToAddress("0x5757")

	assert.ErrorIs(t, f.engine.AcceptOwnership(f.ctx, user), ErrUnauthorized, "nothing pending")

	require.NoError(t, f.engine.TransferOwnership(f.ctx, owner, user))
	assert.ErrorIs(t, f.engine.AcceptOwnership(f.ctx, stranger), ErrUnauthorized)
	assert.ErrorIs(t, f.engine.AcceptOwnership(f.ctx, owner), ErrUnauthorized)

	got, err := f.engine.Owner(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestOwnership_ZeroCandidateClearsPending(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.TransferOwnership(f.ctx, owner, user))
	require.NoError(t, f.engine.TransferOwnership(f.ctx, owner, common.Address{}))

	s, err := f.engine.OwnerState(f.ctx)
	require.NoError(t, err)
	_, ok := s.Pending()
	assert.False(t, ok)
	assert.ErrorIs(t, f.engine.AcceptOwnership(f.ctx, user), ErrUnauthorized)
	assert.ErrorIs(t, f.engine.AcceptOwnership(f.ctx, common.Address{}), ErrUnauthorized)
}

func TestOwnership_ReproposalReplacesCandidate(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x07e4")

	require.NoError(t, f.engine.TransferOwnership(f.ctx, owner, user))
	require.NoError(t, f.engine.TransferOwnership(f.ctx, owner, other))

	assert.ErrorIs(t, f.engine.AcceptOwnership(f.ctx, user), ErrUnauthorized)
	require.NoError(t, f.engine.AcceptOwnership(f.ctx, other))
}

func TestOwnership_EmitsLogs(t *testing.T) {
	f := newFixture(t)
	requested := common.HexToHash("0x01")
	accepted := common.HexToHash("0x02")

	require.NoError(t, f.engine.TransferOwnership(world.WithTx(f.ctx, requested), owner, user))
	require.NoError(t, f.engine.AcceptOwnership(world.WithTx(f.ctx, accepted), user))

	logs := f.state.Logs(requested)
	require.Len(t, logs, 1)
	assert.Equal(t, crypto.Keccak256Hash([]byte("OwnershipTransferRequested(address,address)")), logs[0].Topics[0])
	assert.Equal(t, world.AddressKey(owner), logs[0].Topics[1])
	assert.Equal(t, world.AddressKey(user), logs[0].Topics[2])

	logs = f.state.Logs(accepted)
	require.Len(t, logs, 1)
	assert.Equal(t, crypto.Keccak256Hash([]byte("OwnershipTransferred(address,address)")), logs[0].Topics[0])
	assert.Equal(t, world.AddressKey(owner), logs[0].Topics[1])
	assert.Equal(t, world.AddressKey(user), logs[0].Topics[2])
}

func TestOwnership_UninitializedEngineHasNoOwner(t *testing.T) {
	st, err := world.NewMemoryState()
	require.NoError(t, err)
	e := New(st, engineAddr, nil)

	err = e.TransferOwnership(t.Context(), common.Address{}, user)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, ErrNotInitialized)
}
