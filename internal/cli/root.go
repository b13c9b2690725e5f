// Package cli builds the pegswap command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/pegswap-experiment/pegswap/config"
	"github.com/pegswap-experiment/pegswap/internal/logging"
)

// Version is set by the linker.
var Version = "dev"

type app struct {
	cfgFile string
	cfg     *config.Config
}

// NewRootCmd returns a fresh command tree. Tests build one per case.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "pegswap",
		Short: "Custody engine for 1:1 token swaps",
		Long: `pegswap runs a swap engine that holds liquidity per direction and
exchanges tokens one for one, and talks to a running engine as a client.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Configure(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./pegswap.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json, logfmt)")
	pf.String("url", "http://localhost:8545", "node URL for client commands")
	pf.String("caller", "", "address client transactions are sent from")
	pf.Duration("timeout", 10*time.Second, "client request timeout")

	cmd.AddCommand(newServeCmd(a), newGenesisCmd(a))
	cmd.AddCommand(clientCommands(a)...)
	return cmd
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
