package cli

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pegswap-experiment/pegswap/config"
	"github.com/pegswap-experiment/pegswap/internal/client"
	"github.com/pegswap-experiment/pegswap/internal/journal"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

type servedNode struct {
	client *client.Client
	stop   func() error
}

func serve(t *testing.T, cfg *config.Config) *servedNode {
	t.Helper()
	cfg.Node.Listen = freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg) }()

	c := client.New("http://"+cfg.Node.Listen, nil)
	require.Eventually(t, func() bool {
		_, err := c.Info(context.Background())
		return err == nil
	}, 10*time.Second, 25*time.Millisecond)

	return &servedNode{client: c, stop: func() error {
		cancel()
		return <-done
	}}
}

// A node restarted on the same data directory resumes from its last sealed
// state, and its sqlite journal keeps the swaps recorded before the restart.
func TestServe_RestartKeepsStateAndJournal(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Genesis.Path = writeGenesis(t)
	cfg.Node.DataDir = filepath.Join(dir, "state")
	cfg.Node.CommitInterval = time.Hour
	cfg.Journal.Backend = journal.BackendSQLite
	cfg.Journal.DSN = "file:" + filepath.Join(dir, "journal.db")

	link := common.HexToAddress(linkAddr)
	wrappedTok := common.HexToAddress(wrapped)
	engine := common.HexToAddress(engineAddr)
	user := common.HexToAddress(userAddr)
	ctx := context.Background()

	n := serve(t, cfg)
	_, err = n.client.Approve(ctx, link, user, engine, uint256.NewInt(100))
	require.NoError(t, err)
	_, err = n.client.Swap(ctx, user, uint256.NewInt(40), link, wrappedTok)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		recs, err := n.client.Swaps(ctx, client.SwapQuery{Caller: &user})
		return err == nil && len(recs) == 1
	}, 5*time.Second, 25*time.Millisecond)
	require.NoError(t, n.stop())

	n = serve(t, cfg)
	defer func() { assert.NoError(t, n.stop()) }()

	bal, err := n.client.Balance(ctx, wrappedTok, user)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bal.Uint64())

	amount, err := n.client.SwappableAmount(ctx, link, wrappedTok)
	require.NoError(t, err)
	assert.Equal(t, uint64(260), amount.Uint64())

	recs, err := n.client.Swaps(ctx, client.SwapQuery{Source: link, Target: wrappedTok})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(40), recs[0].AmountIn.Uint64())
}
