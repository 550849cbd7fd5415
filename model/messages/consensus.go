package messages

import (
	"github.com/garpnet/consensus-core/model/chain"
)

// BlockProposal announces a block built by the slot leader.
type BlockProposal struct {
	Block *chain.Block
}

// BlockVote carries a participant's vote on a block.
type BlockVote struct {
	Vote chain.Vote
}
