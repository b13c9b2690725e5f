package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pegswap-experiment/pegswap/config"
	"github.com/pegswap-experiment/pegswap/internal/genesis"
	"github.com/pegswap-experiment/pegswap/internal/journal"
	"github.com/pegswap-experiment/pegswap/internal/logging"
	"github.com/pegswap-experiment/pegswap/internal/node"
	"github.com/pegswap-experiment/pegswap/internal/observability"
	"github.com/pegswap-experiment/pegswap/internal/pegswap"
	"github.com/pegswap-experiment/pegswap/internal/world"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a pegswap node",
		Long: `Runs the swap engine behind its REST, JSON-RPC and websocket surface.
An empty state is initialised from the genesis file first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a.cfg)
		},
	}

	f := cmd.Flags()
	f.String("listen", ":8545", "HTTP listen address")
	f.String("data-dir", "", "leveldb state directory (empty keeps state in memory)")
	f.Duration("commit-interval", 3*time.Second, "block sealing interval")
	f.Uint64("chain-id", node.DefaultChainID, "chain id reported over JSON-RPC")
	f.Bool("dev", false, "expose the token faucet")
	f.String("genesis", "genesis.yaml", "genesis file")
	f.String("journal-backend", journal.BackendMemory, "swap journal backend (memory, sqlite, postgres)")
	f.String("journal-dsn", "", "swap journal DSN")
	f.Bool("metrics", true, "serve prometheus metrics on /metrics")
	return cmd
}

func openState(dir string) (*world.State, error) {
	if dir == "" {
		return world.NewMemoryState()
	}
	return world.OpenState(dir)
}

func runServe(ctx context.Context, cfg *config.Config) (err error) {
	log := logging.With("serve")

	g, err := genesis.Load(cfg.Genesis.Path)
	if err != nil {
		return err
	}
	chainID := cfg.Node.ChainID
	if g.ChainID != 0 && g.ChainID != chainID {
		log.Warn("genesis chain id overrides config", "genesis", g.ChainID, "config", chainID)
		chainID = g.ChainID
	}

	state, err := openState(cfg.Node.DataDir)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, state.Close()) }()

	tokens, err := g.Registry(state)
	if err != nil {
		return err
	}
	metrics := observability.New(nil)
	engine := pegswap.New(state, g.Engine.Address, tokens, pegswap.WithObserver(metrics))

	if !state.Exists(g.Engine.Address) {
		log.Info("applying genesis", "path", cfg.Genesis.Path)
		if err := g.Apply(ctx, state, tokens, engine); err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if _, err := state.Commit(0); err != nil {
			return fmt.Errorf("commit genesis: %w", err)
		}
	}

	store, err := journal.Open(ctx, cfg.Journal.Backend, cfg.Journal.DSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	n := node.New(node.Options{
		Listen:         cfg.Node.Listen,
		ChainID:        chainID,
		CommitInterval: cfg.Node.CommitInterval,
		Dev:            cfg.Node.Dev,
		MetricsEnabled: cfg.Metrics.Enabled,
	}, node.Components{
		State:   state,
		Tokens:  tokens,
		Engine:  engine,
		Journal: store,
		Metrics: metrics,
	})
	return n.Run(ctx)
}
