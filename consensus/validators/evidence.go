package validators

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/garpnet/consensus-core/model/chain"
)

// EvidenceKind classifies the misbehavior a slashing event punishes.
type EvidenceKind int

const (
	// Equivocation is two conflicting votes for the same slot.
	Equivocation EvidenceKind = iota
	// DoubleSign is two different blocks signed for the same slot.
	DoubleSign
	LivenessFault
	InvalidBehavior
	Downtime
	LightClientAttack
	MaliciousProposal
)

func (k EvidenceKind) String() string {
	switch k {
	case Equivocation:
		return "equivocation"
	case DoubleSign:
		return "double_sign"
	case LivenessFault:
		return "liveness_fault"
	case InvalidBehavior:
		return "invalid_behavior"
	case Downtime:
		return "downtime"
	case LightClientAttack:
		return "light_client_attack"
	case MaliciousProposal:
		return "malicious_proposal"
	default:
		return fmt.Sprintf("unknown_evidence(%d)", int(k))
	}
}

// PenaltyFor returns the slashing penalty in basis points and the recorded
// reason for a verified piece of evidence of the given kind.
func PenaltyFor(kind EvidenceKind) (uint32, string) {
	switch kind {
	case DoubleSign:
		return 1000, "double signing detected"
	case Equivocation:
		return 500, "equivocation detected"
	case LivenessFault:
		return 100, "liveness fault"
	case InvalidBehavior:
		return 300, "invalid behavior"
	case Downtime:
		return 50, "excessive downtime"
	case LightClientAttack:
		return 2000, "light client attack"
	case MaliciousProposal:
		return 1500, "malicious proposal"
	default:
		return 0, "unknown evidence"
	}
}

const (
	// MaxEvidenceAge bounds how old submitted evidence may be.
	MaxEvidenceAge = 14 * 24 * time.Hour
	// EvidenceRetention is how long evidence is kept before Prune drops it.
	EvidenceRetention = 30 * 24 * time.Hour
)

// EvidenceStatus is the verification state of a submission.
type EvidenceStatus int

const (
	EvidencePending EvidenceStatus = iota
	EvidenceVerified
	EvidenceRejected
)

// Evidence is a report of validator misbehavior.
type Evidence struct {
	ID          uuid.UUID
	Kind        EvidenceKind
	Validator   chain.ParticipantID
	Reporter    chain.ParticipantID
	Data        []byte
	SubmittedAt time.Time
	Status      EvidenceStatus
}

// SlashingEvent is the outcome of processing one verified piece of evidence.
type SlashingEvent struct {
	EvidenceID uuid.UUID
	Validator  chain.ParticipantID
	Reporter   chain.ParticipantID
	Record     SlashingRecord
}

// EvidencePool collects misbehavior reports until they are verified and
// applied to the registry. Cryptographic verification of the evidence itself
// is performed by the caller, which reports the outcome through Verify.
type EvidencePool struct {
	sync.Mutex
	log       zerolog.Logger
	pending   map[uuid.UUID]*Evidence
	verified  map[uuid.UUID]*Evidence
	processed map[uuid.UUID]struct{}
	now       func() time.Time
}

func NewEvidencePool(log zerolog.Logger) *EvidencePool {
	return &EvidencePool{
		log:       log.With().Str("component", "evidence_pool").Logger(),
		pending:   make(map[uuid.UUID]*Evidence),
		verified:  make(map[uuid.UUID]*Evidence),
		processed: make(map[uuid.UUID]struct{}),
		now:       time.Now,
	}
}

// Submit queues evidence for verification. A zero ID is replaced by a fresh one,
// which is returned.
// Expected errors during normal operations:
//   - InvalidEvidenceError if the evidence carries no data or is older than MaxEvidenceAge
func (p *EvidencePool) Submit(ev Evidence) (uuid.UUID, error) {
	if len(ev.Data) == 0 {
		return uuid.Nil, InvalidEvidenceError{Reason: "empty evidence data"}
	}
	if p.now().Sub(ev.SubmittedAt) > MaxEvidenceAge {
		return uuid.Nil, InvalidEvidenceError{Reason: fmt.Sprintf("evidence submitted at %s is too old", ev.SubmittedAt)}
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.Status = EvidencePending

	p.Lock()
	defer p.Unlock()
	p.pending[ev.ID] = &ev
	p.log.Info().
		Str("evidence_id", ev.ID.String()).
		Str("kind", ev.Kind.String()).
		Str("validator", ev.Validator.String()).
		Msg("evidence submitted")
	return ev.ID, nil
}

// Verify records the verification outcome of pending evidence.
func (p *EvidencePool) Verify(id uuid.UUID, valid bool) (EvidenceStatus, error) {
	p.Lock()
	defer p.Unlock()

	ev, ok := p.pending[id]
	if !ok {
		return EvidencePending, InvalidEvidenceError{Reason: fmt.Sprintf("evidence %s not pending", id)}
	}
	if !valid {
		ev.Status = EvidenceRejected
		return EvidenceRejected, nil
	}
	delete(p.pending, id)
	ev.Status = EvidenceVerified
	p.verified[id] = ev
	return EvidenceVerified, nil
}

// Verified returns verified evidence against the given validator.
func (p *EvidencePool) Verified(validator chain.ParticipantID) []Evidence {
	p.Lock()
	defer p.Unlock()
	var out []Evidence
	for _, ev := range p.verified {
		if ev.Validator == validator {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

// ProcessSlashing applies every verified, not yet processed piece of evidence to
// the registry. Each piece of evidence is applied at most once. Evidence against
// validators the registry no longer knows is skipped.
func (p *EvidencePool) ProcessSlashing(registry *Registry) ([]SlashingEvent, error) {
	p.Lock()
	defer p.Unlock()

	queue := make([]*Evidence, 0, len(p.verified))
	for id, ev := range p.verified {
		if _, done := p.processed[id]; !done {
			queue = append(queue, ev)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].SubmittedAt.Before(queue[j].SubmittedAt) })

	events := make([]SlashingEvent, 0, len(queue))
	for _, ev := range queue {
		penalty, reason := PenaltyFor(ev.Kind)
		record, err := registry.ApplySlashing(ev.Validator, ev.Kind, penalty, reason)
		if IsUnknownValidatorError(err) {
			p.log.Warn().Str("evidence_id", ev.ID.String()).Msg("skipping evidence against unknown validator")
			p.processed[ev.ID] = struct{}{}
			continue
		}
		if err != nil {
			return events, fmt.Errorf("could not apply slashing for evidence %s: %w", ev.ID, err)
		}
		p.processed[ev.ID] = struct{}{}
		events = append(events, SlashingEvent{
			EvidenceID: ev.ID,
			Validator:  ev.Validator,
			Reporter:   ev.Reporter,
			Record:     record,
		})
	}
	return events, nil
}

// Prune drops evidence older than EvidenceRetention.
func (p *EvidencePool) Prune(now time.Time) int {
	p.Lock()
	defer p.Unlock()
	pruned := 0
	for id, ev := range p.pending {
		if now.Sub(ev.SubmittedAt) > EvidenceRetention {
			delete(p.pending, id)
			pruned++
		}
	}
	for id, ev := range p.verified {
		if now.Sub(ev.SubmittedAt) > EvidenceRetention {
			delete(p.verified, id)
			delete(p.processed, id)
			pruned++
		}
	}
	return pruned
}
