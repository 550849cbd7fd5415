package engines

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/garpnet/consensus-core/consensus/timing"
	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/model/chain"
)

// policy captures what distinguishes one consensus algorithm from another.
// Policies are stateless; all inputs are passed as snapshots.
type policy interface {
	requiredVotes(set validatorSet, params Params) uint64
	viable(set validatorSet, params Params) bool
	proposer(view uint64, set validatorSet) (chain.ParticipantID, bool)
	validate(p Proposal) error
	eligible(p *Proposal, voter chain.ParticipantID, set validatorSet) bool
	tally(p *Proposal, votes map[chain.ParticipantID]Vote, set validatorSet, params Params) Outcome
}

// bftPolicy is shared by the byzantine fault tolerant family. The algorithms
// differ in proposer selection only.
type bftPolicy struct {
	algorithm Type
}

// faulty returns the number of byzantine validators tolerated.
func (b bftPolicy) faulty(n uint64, params Params) uint64 {
	if params.ByzantineThreshold > 0 {
		return params.ByzantineThreshold
	}
	if n == 0 {
		return 0
	}
	return (n - 1) / 3
}

func (b bftPolicy) requiredVotes(set validatorSet, params Params) uint64 {
	return 2*b.faulty(set.size(), params) + 1
}

func (b bftPolicy) viable(set validatorSet, params Params) bool {
	return set.size() >= 3*b.faulty(set.size(), params)+1
}

func (b bftPolicy) proposer(view uint64, set validatorSet) (chain.ParticipantID, bool) {
	switch b.algorithm {
	case Tendermint:
		// stake-weighted, deterministic in the view
		id, err := timing.WeightedLeaderForSlot(view, set.weighted())
		if err != nil {
			return "", false
		}
		return id, true
	case HoneyBadgerBFT:
		return "", false
	default:
		// HotStuff rotates the leader each view, PBFT uses primary = view mod n
		return timing.LeaderForSlot(view, set.ids)
	}
}

func (b bftPolicy) validate(Proposal) error {
	return nil
}

func (b bftPolicy) eligible(_ *Proposal, voter chain.ParticipantID, set validatorSet) bool {
	return set.contains(voter)
}

func (b bftPolicy) tally(_ *Proposal, votes map[chain.ParticipantID]Vote, set validatorSet, params Params) Outcome {
	if !params.WeightedVoting {
		return countTally(votes, set, b.requiredVotes(set, params))
	}
	if set.total == 0 {
		return Pending
	}
	var approvals, rejections uint64
	for voter, v := range votes {
		switch v.Type {
		case Approve:
			approvals += set.weights[voter]
		case Reject:
			rejections += set.weights[voter]
		}
	}
	threshold := WeightThresholdToBuildQC(set.total)
	if approvals >= threshold {
		return Approved
	}
	if rejections > set.total-threshold {
		return Rejected
	}
	return Pending
}

// countTally decides by head count among current validators: approved once
// required approvals are in, rejected once enough rejections make that impossible.
func countTally(votes map[chain.ParticipantID]Vote, set validatorSet, required uint64) Outcome {
	var approvals, rejections uint64
	for voter, v := range votes {
		if !set.contains(voter) {
			continue
		}
		switch v.Type {
		case Approve:
			approvals++
		case Reject:
			rejections++
		}
	}
	n := set.size()
	if n == 0 {
		return Pending
	}
	if approvals >= required {
		return Approved
	}
	if required > n || rejections > n-required {
		return Rejected
	}
	return Pending
}

// streamletPolicy notarizes with 2/3 of the heads and picks the leader by hashing the view.
type streamletPolicy struct{}

// requiredVotes is ceil(2n/3), at least one.
func (streamletPolicy) requiredVotes(set validatorSet, _ Params) uint64 {
	n := set.size()
	if n == 0 {
		return 1
	}
	return (2*n + 2) / 3
}

func (streamletPolicy) viable(validatorSet, Params) bool {
	return true
}

func (streamletPolicy) proposer(view uint64, set validatorSet) (chain.ParticipantID, bool) {
	if len(set.ids) == 0 {
		return "", false
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], view)
	digest := sha3.Sum256(buf[:])
	index := binary.BigEndian.Uint64(digest[:8]) % set.size()
	return set.ids[index], true
}

func (streamletPolicy) validate(Proposal) error {
	return nil
}

func (streamletPolicy) eligible(_ *Proposal, voter chain.ParticipantID, set validatorSet) bool {
	return set.contains(voter)
}

func (s streamletPolicy) tally(_ *Proposal, votes map[chain.ParticipantID]Vote, set validatorSet, params Params) Outcome {
	return countTally(votes, set, s.requiredVotes(set, params))
}

// raftPolicy tolerates crash faults only: a simple majority decides and the
// validator with the most voting power leads.
type raftPolicy struct{}

func (raftPolicy) requiredVotes(set validatorSet, _ Params) uint64 {
	return set.size()/2 + 1
}

func (raftPolicy) viable(validatorSet, Params) bool {
	return true
}

func (raftPolicy) proposer(_ uint64, set validatorSet) (chain.ParticipantID, bool) {
	return set.heaviest()
}

func (raftPolicy) validate(Proposal) error {
	return nil
}

func (raftPolicy) eligible(_ *Proposal, voter chain.ParticipantID, set validatorSet) bool {
	return set.contains(voter)
}

func (r raftPolicy) tally(_ *Proposal, votes map[chain.ParticipantID]Vote, set validatorSet, params Params) Outcome {
	return countTally(votes, set, r.requiredVotes(set, params))
}

// stakeholderPolicy lets only the stakeholders named in a proposal vote on it.
// Votes are counted per stakeholder against the quorum ratio.
type stakeholderPolicy struct{}

func (stakeholderPolicy) requiredVotes(set validatorSet, params Params) uint64 {
	return validators.RequiredVotes(set.size(), params.QuorumRatioThousandths)
}

func (stakeholderPolicy) viable(validatorSet, Params) bool {
	return true
}

func (stakeholderPolicy) proposer(_ uint64, set validatorSet) (chain.ParticipantID, bool) {
	return set.heaviest()
}

func (stakeholderPolicy) validate(p Proposal) error {
	if len(p.Stakeholders) == 0 {
		return fmt.Errorf("proposal names no stakeholders")
	}
	return nil
}

func (stakeholderPolicy) eligible(p *Proposal, voter chain.ParticipantID, _ validatorSet) bool {
	for _, s := range p.Stakeholders {
		if s == voter {
			return true
		}
	}
	return false
}

func (stakeholderPolicy) tally(p *Proposal, votes map[chain.ParticipantID]Vote, _ validatorSet, params Params) Outcome {
	required := validators.RequiredVotes(uint64(len(p.Stakeholders)), params.QuorumRatioThousandths)
	var approvals, rejections uint64
	for _, v := range votes {
		switch v.Type {
		case Approve:
			approvals++
		case Reject:
			rejections++
		}
	}
	if approvals >= required {
		return Approved
	}
	if rejections >= required {
		return Rejected
	}
	return Pending
}
