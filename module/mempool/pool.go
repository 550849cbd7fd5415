package mempool

import (
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/garpnet/consensus-core/model/chain"
	"github.com/garpnet/consensus-core/module"
	"github.com/garpnet/consensus-core/network"
	"github.com/garpnet/consensus-core/network/codec/cbor"
)

// ReplayFilter reports transactions already included in a block.
type ReplayFilter interface {
	IsReplay(txID uuid.UUID) bool
}

// entry is a pending transaction with its admission metadata.
type entry struct {
	tx       *chain.Transaction
	fee      uint64
	size     uint64
	received time.Time
	// seq orders entries by receipt; it is unique and monotonic.
	seq uint64
}

// lessEntry orders by fee ascending, then by receipt descending, so the
// maximum is the highest fee received first and the minimum is the
// replace-by-fee eviction candidate.
func lessEntry(a, b *entry) bool {
	if a.fee != b.fee {
		return a.fee < b.fee
	}
	return a.seq > b.seq
}

// Pool holds transactions waiting to be included in a block, ordered by fee.
type Pool struct {
	sync.RWMutex
	log       zerolog.Logger
	metrics   module.MempoolMetrics
	cfg       Config
	index     *btree.BTreeG[*entry]
	byID      map[uuid.UUID]*entry
	bytes     uint64
	seq       uint64
	senders   *senderGate
	replay    ReplayFilter
	sizeOf    func(*chain.Transaction) (int, error)
	now       func() time.Time
	leadersMu sync.RWMutex
	leaders   []chain.ParticipantID

	sender          network.Sender
	workers         *workerpool.WorkerPool
	forwarded       *atomic.Uint64
	forwardFailures *atomic.Uint64
}

type Option func(*Pool)

// WithReplayFilter rejects transactions the filter reports as included.
func WithReplayFilter(filter ReplayFilter) Option {
	return func(p *Pool) {
		p.replay = filter
	}
}

// WithClock replaces the wall clock used for receipt times and rate limiting.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New creates an empty pool. Forwarded transactions are sent through sender.
func New(log zerolog.Logger, collector module.MempoolMetrics, sender network.Sender, cfg Config, opts ...Option) *Pool {
	workers := cfg.ForwardWorkers
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		log:             log.With().Str("component", "mempool").Logger(),
		metrics:         collector,
		cfg:             cfg,
		index:           btree.NewG[*entry](32, lessEntry),
		byID:            make(map[uuid.UUID]*entry),
		senders:         newSenderGate(cfg),
		sizeOf:          func(tx *chain.Transaction) (int, error) { return cbor.Size(tx) },
		now:             time.Now,
		sender:          sender,
		workers:         workerpool.New(workers),
		forwarded:       atomic.NewUint64(0),
		forwardFailures: atomic.NewUint64(0),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

// Stop waits for in-flight forwarding to finish and releases the workers.
func (p *Pool) Stop() {
	p.workers.StopWait()
}

// Submit admits a transaction paying fee.
// Expected errors (all wrapped in RejectedError):
//   - ErrFeeTooLow if fee is below the configured minimum
//   - ErrAlreadyExists if a transaction with the same ID is pending
//   - ErrReplay if the transaction is already included in a block
//   - ErrSenderBanned or ErrSenderGated for banned or badly behaving senders
//   - ErrRateLimited if the sender's byte budget is exhausted
//   - ErrPoolBytesExceeded if the pool's byte budget would be exceeded
//   - ErrPoolFull if the pool is full and fee does not beat the lowest pending fee
func (p *Pool) Submit(tx *chain.Transaction, fee uint64) error {
	if tx == nil {
		return fmt.Errorf("nil transaction")
	}
	if fee < p.cfg.MinFee {
		return p.reject(tx, ErrFeeTooLow)
	}
	if p.has(tx.ID) {
		return p.reject(tx, ErrAlreadyExists)
	}
	if p.replay != nil && p.replay.IsReplay(tx.ID) {
		return p.reject(tx, ErrReplay)
	}

	size, err := p.sizeOf(tx)
	if err != nil {
		return fmt.Errorf("could not compute serialized size of transaction %v: %w", tx.ID, err)
	}
	now := p.now()
	if err := p.senders.admit(tx.Submitter, size, now); err != nil {
		return p.reject(tx, err)
	}

	p.Lock()
	defer p.Unlock()

	if _, ok := p.byID[tx.ID]; ok {
		return p.reject(tx, ErrAlreadyExists)
	}
	if p.bytes+uint64(size) > p.cfg.MaxBytes {
		return p.reject(tx, ErrPoolBytesExceeded)
	}
	if uint(len(p.byID)) >= p.cfg.MaxTransactions {
		lowest, ok := p.index.Min()
		if !ok || fee <= lowest.fee {
			return p.reject(tx, ErrPoolFull)
		}
		p.removeLocked(lowest)
		p.metrics.TransactionEvicted()
		p.log.Debug().
			Str("evicted_tx", lowest.tx.ID.String()).
			Uint64("evicted_fee", lowest.fee).
			Uint64("fee", fee).
			Msg("replaced lowest fee transaction")
	}

	p.seq++
	e := &entry{tx: tx, fee: fee, size: uint64(size), received: now, seq: p.seq}
	p.index.ReplaceOrInsert(e)
	p.byID[tx.ID] = e
	p.bytes += e.size

	p.metrics.TransactionAdmitted(e.size)
	p.metrics.MempoolSize(uint(len(p.byID)), p.bytes)
	p.log.Debug().
		Str("tx_id", tx.ID.String()).
		Str("submitter", tx.Submitter.String()).
		Uint64("fee", fee).
		Int("size", size).
		Msg("transaction admitted")
	return nil
}

func (p *Pool) reject(tx *chain.Transaction, err error) error {
	rejected := newRejectedError(tx.ID, err)
	p.metrics.TransactionRejected(rejected.Reason)
	event := p.log.Debug()
	if err == ErrSenderGated || err == ErrSenderBanned {
		event = p.log.Warn()
	}
	event.Str("tx_id", tx.ID.String()).
		Str("submitter", tx.Submitter.String()).
		Str("reason", rejected.Reason).
		Msg("transaction rejected")
	return rejected
}

func (p *Pool) has(txID uuid.UUID) bool {
	p.RLock()
	defer p.RUnlock()
	_, ok := p.byID[txID]
	return ok
}

func (p *Pool) removeLocked(e *entry) {
	p.index.Delete(e)
	delete(p.byID, e.tx.ID)
	p.bytes -= e.size
}

// Batch removes and returns up to max transactions, highest fee first and,
// among equal fees, earliest received first.
func (p *Pool) Batch(max uint) []*chain.Transaction {
	entries := p.extract(max)
	txs := make([]*chain.Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, e.tx)
	}
	return txs
}

// extract pops entries highest fee first. Entries the replay filter reports
// as included meanwhile are dropped instead of returned.
func (p *Pool) extract(max uint) []*entry {
	p.Lock()
	defer p.Unlock()

	var out []*entry
	dropped := 0
	for uint(len(out)) < max {
		e, ok := p.index.DeleteMax()
		if !ok {
			break
		}
		delete(p.byID, e.tx.ID)
		p.bytes -= e.size
		if p.replay != nil && p.replay.IsReplay(e.tx.ID) {
			dropped++
			continue
		}
		out = append(out, e)
	}
	if len(out) > 0 {
		p.metrics.TransactionsExtracted(len(out))
	}
	if len(out) > 0 || dropped > 0 {
		p.metrics.MempoolSize(uint(len(p.byID)), p.bytes)
	}
	if dropped > 0 {
		p.log.Debug().Int("dropped", dropped).Msg("dropped already included transactions")
	}
	return out
}

// Remove drops the given transactions, typically because a block included
// them. Unknown IDs are ignored. Returns the number of removed transactions.
func (p *Pool) Remove(txIDs ...uuid.UUID) uint {
	p.Lock()
	defer p.Unlock()

	var removed uint
	for _, id := range txIDs {
		e, ok := p.byID[id]
		if !ok {
			continue
		}
		p.removeLocked(e)
		removed++
	}
	if removed > 0 {
		p.metrics.MempoolSize(uint(len(p.byID)), p.bytes)
	}
	return removed
}

// Has returns true if the transaction is pending.
func (p *Pool) Has(txID uuid.UUID) bool {
	return p.has(txID)
}

// Size returns the number of pending transactions.
func (p *Pool) Size() uint {
	p.RLock()
	defer p.RUnlock()
	return uint(len(p.byID))
}

// Bytes returns the total serialized size of pending transactions.
func (p *Pool) Bytes() uint64 {
	p.RLock()
	defer p.RUnlock()
	return p.bytes
}

// PrefetchHints returns how many of the top entries callers should warm
// caches for: the configured depth, bounded by the pool size.
func (p *Pool) PrefetchHints() uint {
	size := p.Size()
	if p.cfg.PrefetchHintDepth < size {
		return p.cfg.PrefetchHintDepth
	}
	return size
}

// BehaviorScore returns the sender's current behavior score.
func (p *Pool) BehaviorScore(sender chain.ParticipantID) int {
	return p.senders.score(sender)
}

// SetBehaviorScore sets the sender's behavior score, clamped to [0, 100].
func (p *Pool) SetBehaviorScore(sender chain.ParticipantID, score int) int {
	return p.senders.set(sender, score)
}

// AdjustBehavior adds delta to the sender's behavior score and returns the clamped result.
func (p *Pool) AdjustBehavior(sender chain.ParticipantID, delta int) int {
	score := p.senders.adjust(sender, delta)
	if score < p.cfg.BehaviorFloor {
		p.log.Warn().
			Str("sender", sender.String()).
			Int("score", score).
			Msg("sender gated")
	}
	return score
}

// ResetBehavior restores the sender's initial behavior score, lifting a gate.
func (p *Pool) ResetBehavior(sender chain.ParticipantID) {
	p.senders.reset(sender)
}

func (p *Pool) Ban(sender chain.ParticipantID) {
	p.senders.ban(sender)
	p.log.Warn().Str("sender", sender.String()).Msg("sender banned")
}

func (p *Pool) Unban(sender chain.ParticipantID) {
	p.senders.unban(sender)
}

func (p *Pool) IsBanned(sender chain.ParticipantID) bool {
	return p.senders.isBanned(sender)
}
