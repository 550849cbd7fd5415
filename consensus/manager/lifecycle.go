package manager

import (
	"github.com/garpnet/consensus-core/consensus/validators"
	"github.com/garpnet/consensus-core/model/chain"
)

// The lifecycle operations below delegate to the validator registry and
// return its errors unchanged. Operations that can change the active set or
// voting power resynchronize the current engine afterwards.

func (m *Manager) Add(v validators.Validator) error {
	if err := m.registry.Add(v); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) Remove(id chain.ParticipantID) error {
	if err := m.registry.Remove(id); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) UpdateStatus(id chain.ParticipantID, status validators.Status) error {
	if err := m.registry.UpdateStatus(id, status); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) Unjail(id chain.ParticipantID) error {
	if err := m.registry.Unjail(id); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) UpdateVotingPower(id chain.ParticipantID, power uint64) error {
	if err := m.registry.UpdateVotingPower(id, power); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) UpdateReputation(id chain.ParticipantID, score int64) error {
	return m.registry.UpdateReputation(id, score)
}

func (m *Manager) RecordSuccessfulProposal(id chain.ParticipantID) error {
	return m.registry.RecordSuccessfulProposal(id)
}

func (m *Manager) RecordFailedProposal(id chain.ParticipantID) error {
	return m.registry.RecordFailedProposal(id)
}

func (m *Manager) RecordMissedVote(id chain.ParticipantID) error {
	return m.registry.RecordMissedVote(id)
}

func (m *Manager) DelegateStake(delegator, validator chain.ParticipantID, amount uint64) error {
	if err := m.registry.DelegateStake(delegator, validator, amount); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) UndelegateStake(delegator, validator chain.ParticipantID, amount uint64) error {
	if err := m.registry.UndelegateStake(delegator, validator, amount); err != nil {
		return err
	}
	m.sync()
	return nil
}

func (m *Manager) ApplySlashing(id chain.ParticipantID, kind validators.EvidenceKind, penaltyBps uint32, reason string) (validators.SlashingRecord, error) {
	record, err := m.registry.ApplySlashing(id, kind, penaltyBps, reason)
	if err != nil {
		return validators.SlashingRecord{}, err
	}
	m.sync()
	return record, nil
}

// RotateValidators re-ranks the registry and reseeds the engine with the new active set.
func (m *Manager) RotateValidators() {
	m.registry.RotateValidators()
	m.sync()
}

func (m *Manager) ByID(id chain.ParticipantID) (*validators.Validator, error) {
	return m.registry.ByID(id)
}

func (m *Manager) ActiveValidators() []*validators.Validator {
	return m.registry.Active()
}

func (m *Manager) TotalVotingPower() uint64 {
	return m.registry.TotalVotingPower()
}

// RequiredVotes is the registry's voting-power quorum.
func (m *Manager) RequiredVotes() uint64 {
	return m.registry.RequiredVotes()
}

// ActiveIDs returns the identities of all active validators in order.
func (m *Manager) ActiveIDs() chain.ParticipantIDList {
	return m.registry.ActiveIDs()
}
