package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	base    = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	wrapped = common.HexToAddress("0x00000000000000000000000000000000000b0002")
	alice   = common.HexToAddress("0x000000000000000000000000000000000000a001")
	bob     = common.HexToAddress("0x000000000000000000000000000000000000a002")
)

func record(tx byte, idx uint, source, target, caller common.Address, amount uint64) *Record {
	return &Record{
		TxHash:    common.BytesToHash([]byte{tx}),
		LogIndex:  idx,
		Block:     uint64(tx),
		Source:    source,
		Target:    target,
		Caller:    caller,
		AmountIn:  uint256.NewInt(amount),
		AmountOut: uint256.NewInt(amount),
		Timestamp: 1_700_000_000_000 + int64(tx),
	}
}

// runStoreSuite checks the behaviour every backend shares.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("InsertAndListByDirection", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, record(1, 0, base, wrapped, alice, 10)))
		require.NoError(t, s.Insert(ctx, record(2, 0, wrapped, base, alice, 20)))
		require.NoError(t, s.Insert(ctx, record(3, 2, base, wrapped, bob, 30)))

		got, err := s.ListByDirection(ctx, base, wrapped, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, record(3, 2, base, wrapped, bob, 30), got[0], "newest first")
		assert.Equal(t, record(1, 0, base, wrapped, alice, 10), got[1])
	})

	t.Run("ListByCaller", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, record(1, 0, base, wrapped, alice, 10)))
		require.NoError(t, s.Insert(ctx, record(2, 0, wrapped, base, bob, 20)))
		require.NoError(t, s.Insert(ctx, record(3, 0, wrapped, base, alice, 30)))

		got, err := s.ListByCaller(ctx, alice, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uint64(30), got[0].AmountIn.Uint64())

		got, err = s.ListByCaller(ctx, common.Address{}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("DuplicateKey", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, record(1, 0, base, wrapped, alice, 10)))
		assert.ErrorIs(t, s.Insert(ctx, record(1, 0, wrapped, base, bob, 99)), ErrDuplicateKey)
		require.NoError(t, s.Insert(ctx, record(1, 1, base, wrapped, alice, 10)), "other log index")

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("FullWidthAmounts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		r := record(1, 0, base, wrapped, alice, 0)
		r.AmountIn = new(uint256.Int).SetAllOne()
		r.AmountOut = new(uint256.Int).SetAllOne()
		require.NoError(t, s.Insert(ctx, r))

		got, err := s.ListByDirection(ctx, base, wrapped, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, r.AmountIn, got[0].AmountIn)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		s := open(t)
		assert.ErrorIs(t, s.Insert(context.Background(), nil), ErrInvalidInput)
		assert.ErrorIs(t, s.Insert(context.Background(), &Record{}), ErrInvalidInput)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := record(1, 0, base, wrapped, alice, 10)
	require.NoError(t, s.Insert(ctx, r))
	r.AmountIn.SetUint64(999)

	got, err := s.ListByCaller(ctx, alice, 1)
	require.NoError(t, err)
	got[0].AmountOut.SetUint64(777)

	again, err := s.ListByCaller(ctx, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), again[0].AmountIn.Uint64())
	assert.Equal(t, uint64(10), again[0].AmountOut.Uint64())
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, record(1, 0, base, wrapped, alice, 10)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.ErrorIs(t, s.Insert(ctx, record(1, 0, base, wrapped, alice, 10)), ErrDuplicateKey)
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "SQLite", ":memory:")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mongo", "")
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0))
	assert.Equal(t, DefaultLimit, clampLimit(-5))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxLimit, clampLimit(MaxLimit+1))
}
