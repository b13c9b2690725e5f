// Package node serves one swap engine over REST, JSON-RPC and websocket, and
// seals its world state into blocks.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/pegswap-experiment/pegswap/internal/contract"
	"github.com/pegswap-experiment/pegswap/internal/journal"
	"github.com/pegswap-experiment/pegswap/internal/logging"
	"github.com/pegswap-experiment/pegswap/internal/observability"
	"github.com/pegswap-experiment/pegswap/internal/pegswap"
	"github.com/pegswap-experiment/pegswap/internal/token"
	"github.com/pegswap-experiment/pegswap/internal/world"
)

const (
	DefaultCommitInterval = 3 * time.Second
	DefaultChainID        = 1337
	shutdownTimeout       = 5 * time.Second
)

type Options struct {
	Listen         string
	ChainID        uint64
	CommitInterval time.Duration
	// Dev exposes the faucet.
	Dev            bool
	MetricsEnabled bool
}

// Components are the pieces a node serves. Journal and Metrics may be nil.
type Components struct {
	State   *world.State
	Tokens  *token.Registry
	Engine  *pegswap.Engine
	Journal journal.Store
	Metrics *observability.Metrics
}

type Node struct {
	opts     Options
	state    *world.State
	tokens   *token.Registry
	engine   *pegswap.Engine
	journal  journal.Store
	writer   *journal.Writer
	metrics  *observability.Metrics
	chain    *Chain
	receipts *ReceiptStore
	router   *mux.Router
	log      *clog.Logger
	started  time.Time

	// mu orders transactions against block sealing, so every transaction
	// lands in the block whose state root covers it.
	mu sync.Mutex
}

func New(opts Options, c Components) *Node {
	if opts.ChainID == 0 {
		opts.ChainID = DefaultChainID
	}
	if opts.CommitInterval <= 0 {
		opts.CommitInterval = DefaultCommitInterval
	}
	if c.Journal == nil {
		c.Journal = journal.NewMemoryStore()
	}
	if c.Metrics == nil {
		c.Metrics = observability.New(nil)
	}

	n := &Node{
		opts:     opts,
		state:    c.State,
		tokens:   c.Tokens,
		engine:   c.Engine,
		journal:  c.Journal,
		metrics:  c.Metrics,
		chain:    NewChain(c.State.Root(), uint64(time.Now().Unix())),
		receipts: NewReceiptStore(),
		router:   mux.NewRouter(),
		log:      logging.With("node"),
		started:  time.Now(),
	}
	n.writer = journal.NewWriter(n.journal, n.pendingHeight, journal.WithWriteObserver(n.metrics))
	n.setupRoutes()
	return n
}

// Handler returns the instrumented HTTP handler.
func (n *Node) Handler() http.Handler { return n.router }

func (n *Node) Chain() *Chain { return n.chain }

func (n *Node) Receipts() *ReceiptStore { return n.receipts }

func (n *Node) pendingHeight() uint64 { return n.chain.Height() + 1 }

// Run listens on opts.Listen and serves until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", n.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", n.opts.Listen, err)
	}
	return n.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln, the block producer and the journal
// writer until ctx is done or one of them fails. Pending transactions are
// sealed into a final block on the way out.
func (n *Node) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := &http.Server{Handler: n.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		n.log.Info("serving", "addr", ln.Addr().String(), "engine", n.engine.Address().Hex(), "chain", n.opts.ChainID)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return n.produceBlocks(ctx) })
	g.Go(func() error { return n.writer.Run(ctx, n.engine) })

	err := g.Wait()
	if _, sealErr := n.SealBlock(); sealErr != nil {
		n.log.Error("final seal failed", "err", sealErr)
		err = errors.Join(err, sealErr)
	}
	return err
}

func (n *Node) produceBlocks(ctx context.Context) error {
	ticker := time.NewTicker(n.opts.CommitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("block producer stopping")
			return nil
		case <-ticker.C:
			block, err := n.SealBlock()
			if err != nil {
				n.log.Error("failed to seal block", "err", err)
				continue
			}
			if len(block.TxHashes) > 0 {
				n.log.Info("sealed block", "height", block.Height, "txs", len(block.TxHashes), "root", block.StateRoot.Hex())
			} else {
				n.log.Debug("sealed empty block", "height", block.Height)
			}
		}
	}
}

// SealBlock commits the world state and seals the pending transactions.
func (n *Node) SealBlock() (*Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	height := n.chain.Height() + 1
	start := time.Now()
	root, err := n.state.Commit(height)
	n.metrics.ObserveCommit(height, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	block := n.chain.Seal(root, uint64(time.Now().Unix()))
	n.receipts.SetBlock(block.TxHashes, block.Height, block.Hash())
	return block, nil
}

func newTxHash() common.Hash {
	return crypto.Keccak256Hash([]byte(uuid.New().String()))
}

// submit executes fn as the transaction of from, records its receipt and
// queues it for the next block. The receipt is returned even when fn fails.
func (n *Node) submit(ctx context.Context, from common.Address, to *common.Address, fn func(ctx context.Context) ([]byte, error)) (*Receipt, error) {
	hash := newTxHash()

	n.mu.Lock()
	defer n.mu.Unlock()

	block := n.pendingHeight()
	ret, err := fn(world.WithBlock(world.WithTx(ctx, hash), block))

	receipt := &Receipt{
		TxHash:      hash,
		BlockNumber: hexutil.Uint64(block),
		From:        from,
		To:          to,
		Logs:        n.state.Logs(hash),
		Status:      StatusSuccess,
		ReturnData:  ret,
	}
	if err != nil {
		receipt.Status = StatusFailed
		receipt.Error = err.Error()
		receipt.Code = errorCode(err)
	}
	receipt.TransactionIndex = hexutil.Uint64(n.chain.AddTx(hash))
	n.receipts.Add(receipt)

	n.log.Debug("transaction", "hash", hash.Hex(), "from", from.Hex(), "status", uint64(receipt.Status))
	return receipt, err
}

// callable returns the contract deployed at addr.
func (n *Node) callable(addr common.Address) (contract.Callable, error) {
	if addr == n.engine.Address() {
		return n.engine, nil
	}
	return n.tokens.Lookup(addr)
}
