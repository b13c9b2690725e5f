package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pegswap-experiment/pegswap/internal/genesis"
)

func newGenesisCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Write the genesis state into a data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Node.DataDir == "" {
				return errors.New("--data-dir is required")
			}
			g, err := genesis.Load(a.cfg.Genesis.Path)
			if err != nil {
				return err
			}
			root, err := genesis.Bootstrap(cmd.Context(), g, a.cfg.Node.DataDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "genesis state root %s written to %s\n", root.Hex(), a.cfg.Node.DataDir)
			return nil
		},
	}
	cmd.Flags().String("genesis", "genesis.yaml", "genesis file")
	cmd.Flags().String("data-dir", "", "leveldb state directory")
	return cmd
}
