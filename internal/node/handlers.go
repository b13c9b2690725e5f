package node

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"github.com/pegswap-experiment/pegswap/internal/journal"
	"github.com/pegswap-experiment/pegswap/internal/token"
)

func (n *Node) setupRoutes() {
	r := n.router
	r.Use(n.instrument)

	// Engine
	r.HandleFunc("/owner", n.handleOwner).Methods("GET")
	r.HandleFunc("/directions", n.handleDirections).Methods("GET")
	r.HandleFunc("/liquidity/{source}/{target}", n.handleGetLiquidity).Methods("GET")
	r.HandleFunc("/liquidity/add", n.handleAddLiquidity).Methods("POST")
	r.HandleFunc("/liquidity/remove", n.handleRemoveLiquidity).Methods("POST")
	r.HandleFunc("/swap", n.handleSwap).Methods("POST")
	r.HandleFunc("/recover", n.handleRecover).Methods("POST")
	r.HandleFunc("/ownership/transfer", n.handleTransferOwnership).Methods("POST")
	r.HandleFunc("/ownership/accept", n.handleAcceptOwnership).Methods("POST")

	// Tokens
	r.HandleFunc("/tokens", n.handleTokens).Methods("GET")
	r.HandleFunc("/tokens/{token}/balance/{holder}", n.handleBalance).Methods("GET")
	r.HandleFunc("/tokens/{token}/allowance/{owner}/{spender}", n.handleAllowance).Methods("GET")
	r.HandleFunc("/tokens/{token}/approve", n.handleApprove).Methods("POST")
	r.HandleFunc("/tokens/{token}/transfer", n.handleTransfer).Methods("POST")
	if n.opts.Dev {
		r.HandleFunc("/faucet", n.handleFaucet).Methods("POST")
	}

	// Chain
	r.HandleFunc("/swaps", n.handleSwaps).Methods("GET")
	r.HandleFunc("/receipts/{hash}", n.handleReceipt).Methods("GET")
	r.HandleFunc("/ws/swaps", n.handleSwapFeed).Methods("GET")

	// Health and info
	r.HandleFunc("/health", n.handleHealth).Methods("GET")
	r.HandleFunc("/info", n.handleInfo).Methods("GET")
	if n.opts.MetricsEnabled {
		r.Handle("/metrics", n.metrics.Handler()).Methods("GET")
	}

	// JSON-RPC endpoint
	r.HandleFunc("/", n.handleJSONRPC).Methods("POST")
}

// ===== Request helpers =====

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, fmt.Errorf("%w: decode body: %v", errBadRequest, err), nil)
		return false
	}
	return true
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	raw := mux.Vars(r)[name]
	if !common.IsHexAddress(raw) {
		writeError(w, fmt.Errorf("%w: invalid %s address %q", errBadRequest, name, raw), nil)
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func requireAmount(w http.ResponseWriter, amount *uint256.Int) bool {
	if amount == nil {
		writeError(w, fmt.Errorf("%w: amount is required", errBadRequest), nil)
		return false
	}
	return true
}

// respondTx submits fn and replies with its receipt, or with the mapped
// error and the failed transaction's hash.
func (n *Node) respondTx(w http.ResponseWriter, r *http.Request, from common.Address, to common.Address, fn func(ctx context.Context) error) {
	receipt, err := n.submit(r.Context(), from, &to, func(ctx context.Context) ([]byte, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		writeError(w, err, &receipt.TxHash)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// ===== Engine handlers =====

func (n *Node) handleOwner(w http.ResponseWriter, r *http.Request) {
	st, err := n.engine.OwnerState(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	resp := OwnerResponse{Owner: st.Owner}
	if pending, ok := st.Pending(); ok {
		resp.PendingOwner = &pending
	}
	writeJSON(w, http.StatusOK, resp)
}

func (n *Node) handleDirections(w http.ResponseWriter, r *http.Request) {
	dirs, err := n.engine.Directions(r.Context())
	if err != nil {
		writeError(w, err, nil)
		return
	}
	out := make([]LiquidityResponse, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, LiquidityResponse{Source: d.Source, Target: d.Target, Amount: d.Amount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (n *Node) handleGetLiquidity(w http.ResponseWriter, r *http.Request) {
	source, ok := pathAddress(w, r, "source")
	if !ok {
		return
	}
	target, ok := pathAddress(w, r, "target")
	if !ok {
		return
	}
	amount, err := n.engine.GetSwappableAmount(r.Context(), source, target)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, LiquidityResponse{Source: source, Target: target, Amount: amount})
}

func (n *Node) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	n.respondTx(w, r, req.From, n.engine.Address(), func(ctx context.Context) error {
		return n.engine.AddLiquidity(ctx, req.From, req.Amount, req.Source, req.Target)
	})
}

func (n *Node) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	var req LiquidityRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	n.respondTx(w, r, req.From, n.engine.Address(), func(ctx context.Context) error {
		return n.engine.RemoveLiquidity(ctx, req.From, req.Amount, req.Source, req.Target)
	})
}

func (n *Node) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	n.respondTx(w, r, req.From, n.engine.Address(), func(ctx context.Context) error {
		return n.engine.Swap(ctx, req.From, req.Amount, req.Source, req.Target)
	})
}

func (n *Node) handleRecover(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	n.respondTx(w, r, req.From, n.engine.Address(), func(ctx context.Context) error {
		return n.engine.RecoverStuckTokens(ctx, req.From, req.Amount, req.Token)
	})
}

func (n *Node) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req OwnershipRequest
	if !decode(w, r, &req) {
		return
	}
	n.respondTx(w, r, req.From, n.engine.Address(), func(ctx context.Context) error {
		return n.engine.TransferOwnership(ctx, req.From, req.To)
	})
}

func (n *Node) handleAcceptOwnership(w http.ResponseWriter, r *http.Request) {
	var req OwnershipRequest
	if !decode(w, r, &req) {
		return
	}
	n.respondTx(w, r, req.From, n.engine.Address(), func(ctx context.Context) error {
		return n.engine.AcceptOwnership(ctx, req.From)
	})
}

// ===== Token handlers =====

func (n *Node) lookupToken(w http.ResponseWriter, r *http.Request) (token.Token, bool) {
	addr, ok := pathAddress(w, r, "token")
	if !ok {
		return nil, false
	}
	tok, err := n.tokens.Lookup(addr)
	if err != nil {
		writeError(w, err, nil)
		return nil, false
	}
	return tok, true
}

func (n *Node) handleTokens(w http.ResponseWriter, r *http.Request) {
	all := n.tokens.All()
	out := make([]TokenInfo, 0, len(all))
	for _, tok := range all {
		supply, err := tok.TotalSupply(r.Context())
		if err != nil {
			writeError(w, err, nil)
			return
		}
		out = append(out, TokenInfo{
			Address:     tok.Address(),
			Symbol:      tok.Symbol(),
			Decimals:    tok.Decimals(),
			TotalSupply: supply,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (n *Node) handleBalance(w http.ResponseWriter, r *http.Request) {
	tok, ok := n.lookupToken(w, r)
	if !ok {
		return
	}
	holder, ok := pathAddress(w, r, "holder")
	if !ok {
		return
	}
	bal, err := tok.BalanceOf(r.Context(), holder)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Token: tok.Address(), Holder: holder, Balance: bal})
}

func (n *Node) handleAllowance(w http.ResponseWriter, r *http.Request) {
	tok, ok := n.lookupToken(w, r)
	if !ok {
		return
	}
	owner, ok := pathAddress(w, r, "owner")
	if !ok {
		return
	}
	spender, ok := pathAddress(w, r, "spender")
	if !ok {
		return
	}
	allowed, err := tok.Allowance(r.Context(), owner, spender)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     tok.Address(),
		"owner":     owner,
		"spender":   spender,
		"allowance": allowed,
	})
}

func (n *Node) handleApprove(w http.ResponseWriter, r *http.Request) {
	tok, ok := n.lookupToken(w, r)
	if !ok {
		return
	}
	var req ApproveRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	n.respondTx(w, r, req.From, tok.Address(), func(ctx context.Context) error {
		return tok.Approve(ctx, req.From, req.Spender, req.Amount)
	})
}

func (n *Node) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tok, ok := n.lookupToken(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	n.respondTx(w, r, req.From, tok.Address(), func(ctx context.Context) error {
		return tok.Transfer(ctx, req.From, req.To, req.Amount)
	})
}

func (n *Node) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if !decode(w, r, &req) || !requireAmount(w, req.Amount) {
		return
	}
	tok, err := n.tokens.Lookup(req.Token)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	n.respondTx(w, r, common.Address{}, tok.Address(), func(ctx context.Context) error {
		return tok.Mint(ctx, req.Address, req.Amount)
	})
}

// ===== Chain handlers =====

func (n *Node) handleSwaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw), nil)
			return
		}
		limit = v
	}

	var (
		records []*journal.Record
		err     error
	)
	switch {
	case q.Get("caller") != "":
		if !common.IsHexAddress(q.Get("caller")) {
			writeError(w, fmt.Errorf("%w: invalid caller", errBadRequest), nil)
			return
		}
		records, err = n.journal.ListByCaller(r.Context(), common.HexToAddress(q.Get("caller")), limit)
	case q.Get("source") != "" && q.Get("target") != "":
		if !common.IsHexAddress(q.Get("source")) || !common.IsHexAddress(q.Get("target")) {
			writeError(w, fmt.Errorf("%w: invalid direction", errBadRequest), nil)
			return
		}
		records, err = n.journal.ListByDirection(r.Context(), common.HexToAddress(q.Get("source")), common.HexToAddress(q.Get("target")), limit)
	default:
		writeError(w, fmt.Errorf("%w: caller or source and target required", errBadRequest), nil)
		return
	}
	if err != nil {
		writeError(w, err, nil)
		return
	}
	if records == nil {
		records = []*journal.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (n *Node) handleReceipt(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["hash"]
	if len(raw) != 66 {
		writeError(w, fmt.Errorf("%w: invalid transaction hash %q", errBadRequest, raw), nil)
		return
	}
	receipt := n.receipts.Get(common.HexToHash(raw))
	if receipt == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "receipt not found", Code: CodeNotFound})
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (n *Node) handleInfo(w http.ResponseWriter, r *http.Request) {
	head := n.chain.Head()
	writeJSON(w, http.StatusOK, InfoResponse{
		ChainID:     n.opts.ChainID,
		Engine:      n.engine.Address(),
		BlockHeight: head.Height,
		StateRoot:   head.StateRoot,
		Dev:         n.opts.Dev,
		Uptime:      time.Since(n.started).Round(time.Second).String(),
	})
}

// ===== Middleware =====

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (n *Node) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		n.metrics.ObserveRequest(route, rec.status, time.Since(start))
	})
}
