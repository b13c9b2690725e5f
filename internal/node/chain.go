package node

import (
	"crypto/sha256"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Block seals the transactions executed since its parent.
type Block struct {
	Height     uint64        `json:"height"`
	ParentHash common.Hash   `json:"parentHash"`
	Timestamp  uint64        `json:"timestamp"`
	StateRoot  common.Hash   `json:"stateRoot"`
	TxHashes   []common.Hash `json:"transactions"`
}

func (b *Block) Hash() common.Hash {
	data, _ := json.Marshal(b)
	return sha256.Sum256(data)
}

// Chain is the in-memory list of sealed blocks plus the pending transactions.
type Chain struct {
	mu      sync.RWMutex
	blocks  []*Block
	pending []common.Hash
}

// NewChain starts a chain whose block 0 commits to root.
func NewChain(root common.Hash, timestamp uint64) *Chain {
	genesis := &Block{
		Height:    0,
		Timestamp: timestamp,
		StateRoot: root,
		TxHashes:  []common.Hash{},
	}
	return &Chain{blocks: []*Block{genesis}}
}

// AddTx queues a transaction for the next block and returns its index in it.
func (c *Chain) AddTx(hash common.Hash) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, hash)
	return len(c.pending) - 1
}

func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint64(len(c.blocks) - 1)
}

func (c *Chain) Head() *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[len(c.blocks)-1]
}

// BlockAt returns the sealed block at height.
func (c *Chain) BlockAt(height uint64) (*Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if height >= uint64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[height], true
}

func (c *Chain) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Seal appends the next block holding every pending transaction.
func (c *Chain) Seal(root common.Hash, timestamp uint64) *Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.blocks[len(c.blocks)-1]
	txs := c.pending
	if txs == nil {
		txs = []common.Hash{}
	}
	block := &Block{
		Height:     parent.Height + 1,
		ParentHash: parent.Hash(),
		Timestamp:  timestamp,
		StateRoot:  root,
		TxHashes:   txs,
	}
	c.blocks = append(c.blocks, block)
	c.pending = nil
	return block
}
