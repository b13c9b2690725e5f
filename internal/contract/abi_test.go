package contract

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABI = `[
	{"type":"function","name":"put","stateMutability":"nonpayable","inputs":[{"name":"who","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"get","stateMutability":"view","inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Put","anonymous":false,"inputs":[{"name":"who","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

var parsed = MustParse(testABI)

func TestMethod_DecodesArguments(t *testing.T) {
	who := common.HexToAddress("0x1111")
	input, err := parsed.Pack("put", who, big.NewInt(42))
	require.NoError(t, err)

	method, args, err := parsed.Method(input)
	require.NoError(t, err)
	assert.Equal(t, "put", method.Name)
	assert.False(t, IsView(method))

	gotWho, err := Address(args[0])
	require.NoError(t, err)
	assert.Equal(t, who, gotWho)

	amount, err := Amount(args[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(42), amount.Uint64())
}

func TestMethod_Rejections(t *testing.T) {
	_, _, err := parsed.Method([]byte{1, 2})
	assert.True(t, errors.Is(err, ErrBadInput))

	_, _, err = parsed.Method([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.True(t, errors.Is(err, ErrUnknownMethod))

	input, err := parsed.Pack("get", common.HexToAddress("0x1"))
	require.NoError(t, err)
	_, _, err = parsed.Method(append(input, 0x00))
	assert.True(t, errors.Is(err, ErrBadInput))
}

func TestNewLog_TopicsAndData(t *testing.T) {
	addr := common.HexToAddress("0xc0ffee")
	who := common.HexToAddress("0x2222")

	log, err := parsed.NewLog(addr, "Put", who, big.NewInt(7))
	require.NoError(t, err)

	assert.Equal(t, addr, log.Address)
	require.Len(t, log.Topics, 2)
	assert.Equal(t, crypto.Keccak256Hash([]byte("Put(address,uint256)")), log.Topics[0])
	assert.Equal(t, common.BytesToHash(who.Bytes()), log.Topics[1])
	assert.Equal(t, common.LeftPadBytes([]byte{7}, 32), log.Data)

	_, err = parsed.NewLog(addr, "Put", who)
	assert.Error(t, err)
}

func TestAmount_RejectsOutOfRange(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err := Amount(tooBig)
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = Amount("nope")
	assert.ErrorIs(t, err, ErrBadInput)

	v, err := Amount(Big(uint256.NewInt(9)))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v.Uint64())
}
