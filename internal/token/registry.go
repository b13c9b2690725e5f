package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry maps token addresses to their implementations.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]Token
	order  []common.Address
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]Token)}
}

// Register adds t. Registering the same address twice fails.
func (r *Registry) Register(t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := t.Address()
	if _, ok := r.tokens[addr]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, addr.Hex())
	}
	r.tokens[addr] = t
	r.order = append(r.order, addr)
	return nil
}

// Resolve returns the gateway for addr.
func (r *Registry) Resolve(addr common.Address) (Gateway, error) {
	t, err := r.Lookup(addr)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Lookup returns the full token for addr.
func (r *Registry) Lookup(addr common.Address) (Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return t, nil
}

// All returns every registered token in registration order.
func (r *Registry) All() []Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Token, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.tokens[addr])
	}
	return out
}
