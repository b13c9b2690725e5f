// Package genesis describes the initial world of a node and installs it.
package genesis

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/pegswap-experiment/pegswap/internal/logging"
	"github.com/pegswap-experiment/pegswap/internal/pegswap"
	"github.com/pegswap-experiment/pegswap/internal/token"
	"github.com/pegswap-experiment/pegswap/internal/world"
)

var ErrInvalid = errors.New("genesis: invalid")

// Genesis is the YAML genesis document.
type Genesis struct {
	ChainID      uint64          `yaml:"chain_id"`
	Engine       EngineSpec      `yaml:"engine"`
	Tokens       []TokenSpec     `yaml:"tokens"`
	TestAccounts *TestAccounts   `yaml:"test_accounts,omitempty"`
	Liquidity    []LiquiditySpec `yaml:"liquidity,omitempty"`
}

type EngineSpec struct {
	Address common.Address `yaml:"address"`
	Owner   common.Address `yaml:"owner"`
}

type TokenSpec struct {
	Address  common.Address `yaml:"address"`
	Symbol   string         `yaml:"symbol"`
	Decimals uint8          `yaml:"decimals"`
	// Allocations maps holder to a decimal amount.
	Allocations map[common.Address]string `yaml:"allocations,omitempty"`
}

// TestAccounts funds Count deterministic accounts with Balance of every token.
type TestAccounts struct {
	Count   int    `yaml:"count"`
	Seed    string `yaml:"seed"`
	Balance string `yaml:"balance"`
}

// LiquiditySpec is a direction the owner funds from its own allocation.
type LiquiditySpec struct {
	Source common.Address `yaml:"source"`
	Target common.Address `yaml:"target"`
	Amount string         `yaml:"amount"`
}

// Load reads and validates the genesis file at path.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Genesis) Validate() error {
	zero := common.Address{}
	if g.Engine.Address == zero {
		return fmt.Errorf("%w: engine.address is required", ErrInvalid)
	}
	if g.Engine.Owner == zero {
		return fmt.Errorf("%w: engine.owner is required", ErrInvalid)
	}

	seen := map[common.Address]bool{g.Engine.Address: true}
	for i, t := range g.Tokens {
		if t.Address == zero {
			return fmt.Errorf("%w: tokens[%d].address is required", ErrInvalid, i)
		}
		if seen[t.Address] {
			return fmt.Errorf("%w: address %s used twice", ErrInvalid, t.Address.Hex())
		}
		seen[t.Address] = true
		for holder, amount := range t.Allocations {
			if _, err := uint256.FromDecimal(amount); err != nil {
				return fmt.Errorf("%w: tokens[%d] allocation for %s: %v", ErrInvalid, i, holder.Hex(), err)
			}
		}
	}
	if ta := g.TestAccounts; ta != nil {
		if ta.Count < 0 {
			return fmt.Errorf("%w: test_accounts.count is negative", ErrInvalid)
		}
		if _, err := uint256.FromDecimal(ta.Balance); err != nil {
			return fmt.Errorf("%w: test_accounts.balance: %v", ErrInvalid, err)
		}
	}
	for i, l := range g.Liquidity {
		if !seen[l.Source] || !seen[l.Target] || l.Source == g.Engine.Address || l.Target == g.Engine.Address {
			return fmt.Errorf("%w: liquidity[%d] references an unknown token", ErrInvalid, i)
		}
		if _, err := uint256.FromDecimal(l.Amount); err != nil {
			return fmt.Errorf("%w: liquidity[%d].amount: %v", ErrInvalid, i, err)
		}
	}
	return nil
}

// TestAccountAddresses derives the deterministic test accounts.
func (g *Genesis) TestAccountAddresses() []common.Address {
	if g.TestAccounts == nil {
		return nil
	}
	seed := g.TestAccounts.Seed
	if seed == "" {
		seed = "pegswap-test-account"
	}
	out := make([]common.Address, 0, g.TestAccounts.Count)
	for i := 0; i < g.TestAccounts.Count; i++ {
		hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", seed, i)))
		out = append(out, common.BytesToAddress(hash[:]))
	}
	return out
}

// Registry builds the token ledgers described by g on state.
func (g *Genesis) Registry(state *world.State) (*token.Registry, error) {
	reg := token.NewRegistry()
	for _, t := range g.Tokens {
		if err := reg.Register(token.NewLedger(state, t.Address, t.Symbol, t.Decimals)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Apply installs g on state as one unit: allocations and test balances are
// minted, the engine owner is set and the configured directions are funded.
// Nothing is committed.
func (g *Genesis) Apply(ctx context.Context, state *world.State, tokens *token.Registry, engine *pegswap.Engine) error {
	log := logging.With("genesis")

	return state.Execute(ctx, func(ctx context.Context) error {
		accounts := g.TestAccountAddresses()
		for _, spec := range g.Tokens {
			tok, err := tokens.Lookup(spec.Address)
			if err != nil {
				return err
			}
			state.Touch(spec.Address)

			for holder, amount := range spec.Allocations {
				if err := tok.Mint(ctx, holder, uint256.MustFromDecimal(amount)); err != nil {
					return fmt.Errorf("mint %s to %s: %w", spec.Symbol, holder.Hex(), err)
				}
			}
			if g.TestAccounts != nil {
				balance := uint256.MustFromDecimal(g.TestAccounts.Balance)
				for _, acct := range accounts {
					if err := tok.Mint(ctx, acct, balance); err != nil {
						return fmt.Errorf("mint %s to test account %s: %w", spec.Symbol, acct.Hex(), err)
					}
				}
			}
		}

		owner := g.Engine.Owner
		if err := engine.Initialize(ctx, owner); err != nil {
			return err
		}

		for _, l := range g.Liquidity {
			amount := uint256.MustFromDecimal(l.Amount)
			tok, err := tokens.Lookup(l.Target)
			if err != nil {
				return err
			}
			if err := tok.Approve(ctx, owner, engine.Address(), amount); err != nil {
				return err
			}
			if err := engine.AddLiquidity(ctx, owner, amount, l.Source, l.Target); err != nil {
				return fmt.Errorf("fund %s: %w", pegswap.NewDirection(l.Source, l.Target), err)
			}
		}

		log.Info("genesis applied",
			"chain", g.ChainID,
			"engine", g.Engine.Address.Hex(),
			"owner", owner.Hex(),
			"tokens", len(g.Tokens),
			"testAccounts", len(accounts),
			"directions", len(g.Liquidity))
		return nil
	})
}

// Bootstrap writes g into a fresh leveldb state under dir and commits it as
// block 0.
func Bootstrap(ctx context.Context, g *Genesis, dir string) (common.Hash, error) {
	state, err := world.OpenState(dir)
	if err != nil {
		return common.Hash{}, err
	}
	defer state.Close()

	if state.Exists(g.Engine.Address) {
		return common.Hash{}, fmt.Errorf("%w: state in %s is already initialized", ErrInvalid, dir)
	}

	tokens, err := g.Registry(state)
	if err != nil {
		return common.Hash{}, err
	}
	engine := pegswap.New(state, g.Engine.Address, tokens)
	if err := g.Apply(ctx, state, tokens, engine); err != nil {
		return common.Hash{}, err
	}
	return state.Commit(0)
}
