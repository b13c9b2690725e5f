// Package client talks to a pegswap node over its REST surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/journal"
	"github.com/pegswap-experiment/pegswap/internal/network"
	"github.com/pegswap-experiment/pegswap/internal/node"
	"github.com/pegswap-experiment/pegswap/internal/pegswap"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// APIError is a non-2xx reply from the node. It unwraps to the engine
// sentinel matching its code, so errors.Is(err, pegswap.ErrUnauthorized)
// works across the wire.
type APIError struct {
	Status  int
	Code    string
	Message string
	// TxHash is set when a submitted transaction failed.
	TxHash *common.Hash
}

func (e *APIError) Error() string {
	return fmt.Sprintf("node returned %d (%s): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if err := pegswap.ErrorForCode(e.Code); err != nil {
		return err
	}
	switch e.Code {
	case node.CodeBadRequest:
		return ErrBadRequest
	case node.CodeNotFound:
		return ErrNotFound
	}
	return nil
}

type Client struct {
	base string
	http *http.Client
}

// New returns a client for the node at baseURL. A nil httpClient uses
// network.NewHTTPClient with zero config.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = network.NewHTTPClient(network.Config{}, nil)
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var er node.ErrorResponse
		if json.Unmarshal(data, &er) == nil && er.Code != "" {
			apiErr.Code = er.Code
			apiErr.Message = er.Error
			apiErr.TxHash = er.TxHash
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) submit(ctx context.Context, path string, body interface{}) (*node.Receipt, error) {
	var r node.Receipt
	if err := c.do(ctx, http.MethodPost, path, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ===== Engine =====

func (c *Client) Owner(ctx context.Context) (*node.OwnerResponse, error) {
	var r node.OwnerResponse
	if err := c.do(ctx, http.MethodGet, "/owner", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SwappableAmount returns the liquidity available for swapping source into target.
func (c *Client) SwappableAmount(ctx context.Context, source, target common.Address) (*uint256.Int, error) {
	var r node.LiquidityResponse
	if err := c.do(ctx, http.MethodGet, "/liquidity/"+source.Hex()+"/"+target.Hex(), nil, &r); err != nil {
		return nil, err
	}
	return r.Amount, nil
}

func (c *Client) Directions(ctx context.Context) ([]node.LiquidityResponse, error) {
	var r []node.LiquidityResponse
	if err := c.do(ctx, http.MethodGet, "/directions", nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) AddLiquidity(ctx context.Context, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error) {
	return c.submit(ctx, "/liquidity/add", node.LiquidityRequest{From: from, Amount: amount, Source: source, Target: target})
}

func (c *Client) RemoveLiquidity(ctx context.Context, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error) {
	return c.submit(ctx, "/liquidity/remove", node.LiquidityRequest{From: from, Amount: amount, Source: source, Target: target})
}

func (c *Client) Swap(ctx context.Context, from common.Address, amount *uint256.Int, source, target common.Address) (*node.Receipt, error) {
	return c.submit(ctx, "/swap", node.SwapRequest{From: from, Amount: amount, Source: source, Target: target})
}

func (c *Client) RecoverStuckTokens(ctx context.Context, from common.Address, amount *uint256.Int, tok common.Address) (*node.Receipt, error) {
	return c.submit(ctx, "/recover", node.RecoverRequest{From: from, Amount: amount, Token: tok})
}

func (c *Client) TransferOwnership(ctx context.Context, from, to common.Address) (*node.Receipt, error) {
	return c.submit(ctx, "/ownership/transfer", node.OwnershipRequest{From: from, To: to})
}

func (c *Client) AcceptOwnership(ctx context.Context, from common.Address) (*node.Receipt, error) {
	return c.submit(ctx, "/ownership/accept", node.OwnershipRequest{From: from})
}

// ===== Tokens =====

func (c *Client) Tokens(ctx context.Context) ([]node.TokenInfo, error) {
	var r []node.TokenInfo
	if err := c.do(ctx, http.MethodGet, "/tokens", nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Balance(ctx context.Context, tok, holder common.Address) (*uint256.Int, error) {
	var r node.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/tokens/"+tok.Hex()+"/balance/"+holder.Hex(), nil, &r); err != nil {
		return nil, err
	}
	return r.Balance, nil
}

func (c *Client) Approve(ctx context.Context, tok, from, spender common.Address, amount *uint256.Int) (*node.Receipt, error) {
	return c.submit(ctx, "/tokens/"+tok.Hex()+"/approve", node.ApproveRequest{From: from, Spender: spender, Amount: amount})
}

func (c *Client) Transfer(ctx context.Context, tok, from, to common.Address, amount *uint256.Int) (*node.Receipt, error) {
	return c.submit(ctx, "/tokens/"+tok.Hex()+"/transfer", node.TransferRequest{From: from, To: to, Amount: amount})
}

// Faucet mints test tokens. Only dev nodes serve it.
func (c *Client) Faucet(ctx context.Context, tok, to common.Address, amount *uint256.Int) (*node.Receipt, error) {
	return c.submit(ctx, "/faucet", node.FaucetRequest{Token: tok, Address: to, Amount: amount})
}

// ===== Chain =====

// SwapQuery selects journal records by caller, or by direction when
// Caller is nil.
type SwapQuery struct {
	Caller         *common.Address
	Source, Target common.Address
	Limit          int
}

func (c *Client) Swaps(ctx context.Context, q SwapQuery) ([]*journal.Record, error) {
	v := url.Values{}
	if q.Caller != nil {
		v.Set("caller", q.Caller.Hex())
	} else {
		v.Set("source", q.Source.Hex())
		v.Set("target", q.Target.Hex())
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	var r []*journal.Record
	if err := c.do(ctx, http.MethodGet, "/swaps?"+v.Encode(), nil, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*node.Receipt, error) {
	var r node.Receipt
	if err := c.do(ctx, http.MethodGet, "/receipts/"+hash.Hex(), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) Info(ctx context.Context) (*node.InfoResponse, error) {
	var r node.InfoResponse
	if err := c.do(ctx, http.MethodGet, "/info", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
