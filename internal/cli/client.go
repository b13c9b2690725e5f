package cli

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/pegswap-experiment/pegswap/internal/client"
	"github.com/pegswap-experiment/pegswap/internal/logging"
	"github.com/pegswap-experiment/pegswap/internal/network"
	"github.com/pegswap-experiment/pegswap/internal/node"
)

func (a *app) client() *client.Client {
	obs := network.LogObserver{Log: logging.With("client")}
	return client.New(a.cfg.Client.URL, network.NewHTTPClient(a.cfg.Client.Config, obs))
}

func (a *app) caller() (common.Address, error) {
	if a.cfg.Client.Caller == "" {
		return common.Address{}, errors.New("--caller is required")
	}
	return parseAddress("caller", a.cfg.Client.Caller)
}

// directionArgs parses "<amount> <source> <target>".
func directionArgs(args []string) (*uint256.Int, common.Address, common.Address, error) {
	amount, err := parseAmount(args[0])
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	source, err := parseAddress("source", args[1])
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	target, err := parseAddress("target", args[2])
	if err != nil {
		return nil, common.Address{}, common.Address{}, err
	}
	return amount, source, target, nil
}

type directionCall func(c *client.Client, cmd *cobra.Command, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error)

func (a *app) directionCmd(use, short string, call directionCall) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount> <source> <target>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.caller()
			if err != nil {
				return err
			}
			amount, source, target, err := directionArgs(args)
			if err != nil {
				return err
			}
			receipt, err := call(a.client(), cmd, from, amount, source, target)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}
}

func clientCommands(a *app) []*cobra.Command {
	owner := &cobra.Command{
		Use:   "owner",
		Short: "Show the owner and any pending owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client().Owner(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}

	liquidity := &cobra.Command{
		Use:   "liquidity <source> <target>",
		Short: "Show the amount available to swap source into target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseAddress("source", args[0])
			if err != nil {
				return err
			}
			target, err := parseAddress("target", args[1])
			if err != nil {
				return err
			}
			amount, err := a.client().SwappableAmount(cmd.Context(), source, target)
			if err != nil {
				return err
			}
			return printJSON(cmd, node.LiquidityResponse{Source: source, Target: target, Amount: amount})
		},
	}

	directions := &cobra.Command{
		Use:   "directions",
		Short: "List every known direction with its liquidity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := a.client().Directions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, dirs)
		},
	}

	add := a.directionCmd("add-liquidity", "Deposit target tokens as liquidity for a direction",
		func(c *client.Client, cmd *cobra.Command, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error) {
			return c.AddLiquidity(cmd.Context(), from, amount, source, target)
		})
	remove := a.directionCmd("remove-liquidity", "Withdraw liquidity of a direction (owner only)",
		func(c *client.Client, cmd *cobra.Command, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error) {
			return c.RemoveLiquidity(cmd.Context(), from, amount, source, target)
		})
	swap := a.directionCmd("swap", "Exchange source tokens for target tokens one for one",
		func(c *client.Client, cmd *cobra.Command, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error) {
			return c.Swap(cmd.Context(), from, amount, source, target)
		})

	recoverCmd := &cobra.Command{
		Use:   "recover <amount> <token>",
		Short: "Send tokens held by the engine to the owner (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.caller()
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			tok, err := parseAddress("token", args[1])
			if err != nil {
				return err
			}
			receipt, err := a.client().RecoverStuckTokens(cmd.Context(), from, amount, tok)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}

	transferOwnership := &cobra.Command{
		Use:   "transfer-ownership <to>",
		Short: "Propose a new owner (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.caller()
			if err != nil {
				return err
			}
			to, err := parseAddress("to", args[0])
			if err != nil {
				return err
			}
			receipt, err := a.client().TransferOwnership(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}

	acceptOwnership := &cobra.Command{
		Use:   "accept-ownership",
		Short: "Accept a pending ownership transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.caller()
			if err != nil {
				return err
			}
			receipt, err := a.client().AcceptOwnership(cmd.Context(), from)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}

	balance := &cobra.Command{
		Use:   "balance <token> <holder>",
		Short: "Show a token balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := parseAddress("token", args[0])
			if err != nil {
				return err
			}
			holder, err := parseAddress("holder", args[1])
			if err != nil {
				return err
			}
			bal, err := a.client().Balance(cmd.Context(), tok, holder)
			if err != nil {
				return err
			}
			return printJSON(cmd, node.BalanceResponse{Token: tok, Holder: holder, Balance: bal})
		},
	}

	approve := &cobra.Command{
		Use:   "approve <token> <spender> <amount>",
		Short: "Allow spender to pull up to amount of the caller's tokens",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := a.caller()
			if err != nil {
				return err
			}
			tok, err := parseAddress("token", args[0])
			if err != nil {
				return err
			}
			spender, err := parseAddress("spender", args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			receipt, err := a.client().Approve(cmd.Context(), tok, from, spender, amount)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}

	var (
		swapSource, swapTarget, swapBy string
		swapLimit                      int
	)
	swaps := &cobra.Command{
		Use:   "swaps",
		Short: "List journaled swaps by caller or by direction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var q client.SwapQuery
			q.Limit = swapLimit
			switch {
			case swapBy != "":
				by, err := parseAddress("by", swapBy)
				if err != nil {
					return err
				}
				q.Caller = &by
			case swapSource != "" && swapTarget != "":
				var err error
				if q.Source, err = parseAddress("source", swapSource); err != nil {
					return err
				}
				if q.Target, err = parseAddress("target", swapTarget); err != nil {
					return err
				}
			default:
				return errors.New("either --by or both --source and --target are required")
			}
			records, err := a.client().Swaps(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	swaps.Flags().StringVar(&swapSource, "source", "", "source token of the direction")
	swaps.Flags().StringVar(&swapTarget, "target", "", "target token of the direction")
	swaps.Flags().StringVar(&swapBy, "by", "", "caller address")
	swaps.Flags().IntVar(&swapLimit, "limit", 0, "maximum records (newest first)")

	return []*cobra.Command{
		owner, liquidity, directions, add, remove, swap, recoverCmd,
		transferOwnership, acceptOwnership, balance, approve, swaps,
	}
}
