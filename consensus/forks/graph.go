// Package forks maintains the block graph: headers keyed by block ID,
// parent to children adjacency, cumulative vote weight per block and the set
// of transactions already included in some block.
package forks

import (
	"math/bits"
	"sync"

	"github.com/ef-ds/deque"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
	"github.com/garpnet/consensus-core/module/irrecoverable"
)

// Graph is an append-only arena of blocks addressed by their ID. Blocks may
// arrive in any order; a block whose parent is unknown is simply unreachable
// until it is searched from a root that leads to it.
type Graph struct {
	sync.RWMutex
	log       zerolog.Logger
	metrics   module.ConsensusMetrics
	headers   map[chain.Identifier]chain.Header
	children  map[chain.Identifier][]chain.Identifier
	weights   map[chain.Identifier]uint64
	seenTxs   map[uuid.UUID]struct{}
	proposals map[uuid.UUID]chain.Identifier
}

func New(log zerolog.Logger, collector module.ConsensusMetrics) *Graph {
	return &Graph{
		log:       log.With().Str("component", "fork_graph").Logger(),
		metrics:   collector,
		headers:   make(map[chain.Identifier]chain.Header),
		children:  make(map[chain.Identifier][]chain.Identifier),
		weights:   make(map[chain.Identifier]uint64),
		seenTxs:   make(map[uuid.UUID]struct{}),
		proposals: make(map[uuid.UUID]chain.Identifier),
	}
}

// InsertBlock adds the block to the graph and records its transactions as
// seen. Votes that arrived for the block before the block itself are kept.
// Returns false if the block was already known, in which case nothing changes.
func (g *Graph) InsertBlock(block *chain.Block) bool {
	blockID := block.ID()

	g.Lock()
	defer g.Unlock()

	if _, ok := g.headers[blockID]; ok {
		return false
	}
	g.headers[blockID] = block.Header
	parentID := block.Header.ParentID
	g.children[parentID] = append(g.children[parentID], blockID)
	if _, ok := g.weights[blockID]; !ok {
		g.weights[blockID] = 0
	}
	for _, tx := range block.Transactions {
		g.seenTxs[tx.ID] = struct{}{}
	}

	g.metrics.BlockInserted()
	g.log.Debug().
		Hex("block_id", blockID[:]).
		Hex("parent_id", parentID[:]).
		Uint64("slot", block.Header.Slot).
		Int("transactions", len(block.Transactions)).
		Msg("block inserted")
	return true
}

// AddVotes adds weight to the cumulative vote weight of the block. Weight is
// never reset. Weight for a block that has not arrived yet is kept for it.
// No errors are expected during normal operation; an overflowing weight is an exception.
func (g *Graph) AddVotes(blockID chain.Identifier, weight uint64) error {
	g.Lock()
	defer g.Unlock()

	sum, carry := bits.Add64(g.weights[blockID], weight, 0)
	if carry != 0 {
		return irrecoverable.NewExceptionf("cumulative vote weight of block %x overflows", blockID)
	}
	g.weights[blockID] = sum
	return nil
}

// BestFork returns the block with the greatest cumulative weight among root
// and all blocks reachable from it. Blocks are visited breadth first and ties
// go to the block visited first, so a root without heavier descendants is
// returned itself.
func (g *Graph) BestFork(root chain.Identifier) chain.Identifier {
	g.RLock()
	defer g.RUnlock()

	best, bestWeight := root, g.weights[root]
	visited := map[chain.Identifier]struct{}{root: {}}
	var queue deque.Deque
	queue.PushBack(root)
	for queue.Len() > 0 {
		v, _ := queue.PopFront()
		current := v.(chain.Identifier)
		if w := g.weights[current]; w > bestWeight {
			best, bestWeight = current, w
		}
		for _, child := range g.children[current] {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			queue.PushBack(child)
		}
	}

	g.metrics.BestForkWeight(bestWeight)
	return best
}

// IsReplay returns true if the transaction is included in an inserted block.
func (g *Graph) IsReplay(txID uuid.UUID) bool {
	g.RLock()
	defer g.RUnlock()
	_, ok := g.seenTxs[txID]
	return ok
}

// HasBlock returns true if the block was inserted.
func (g *Graph) HasBlock(blockID chain.Identifier) bool {
	g.RLock()
	defer g.RUnlock()
	_, ok := g.headers[blockID]
	return ok
}

// Header returns a copy of the header of an inserted block.
func (g *Graph) Header(blockID chain.Identifier) (chain.Header, bool) {
	g.RLock()
	defer g.RUnlock()
	header, ok := g.headers[blockID]
	return header, ok
}

// Weight returns the cumulative vote weight of the block.
func (g *Graph) Weight(blockID chain.Identifier) uint64 {
	g.RLock()
	defer g.RUnlock()
	return g.weights[blockID]
}

// Children returns the IDs of the known children of the block in insertion order.
func (g *Graph) Children(blockID chain.Identifier) []chain.Identifier {
	g.RLock()
	defer g.RUnlock()
	return append([]chain.Identifier(nil), g.children[blockID]...)
}

// Size returns the number of inserted blocks.
func (g *Graph) Size() int {
	g.RLock()
	defer g.RUnlock()
	return len(g.headers)
}

// MapProposal associates a consensus proposal with the block built for it.
// A later mapping for the same proposal replaces the earlier one.
func (g *Graph) MapProposal(proposalID uuid.UUID, blockID chain.Identifier) {
	g.Lock()
	defer g.Unlock()
	g.proposals[proposalID] = blockID
}

// BlockForProposal returns the block built for the proposal.
func (g *Graph) BlockForProposal(proposalID uuid.UUID) (chain.Identifier, bool) {
	g.RLock()
	defer g.RUnlock()
	blockID, ok := g.proposals[proposalID]
	return blockID, ok
}
