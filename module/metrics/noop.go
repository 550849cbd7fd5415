package metrics

import (
	"github.com/garpnet/consensus-core/module"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

var _ module.CacheMetrics = (*NoopCollector)(nil)
var _ module.MempoolMetrics = (*NoopCollector)(nil)
var _ module.ConsensusMetrics = (*NoopCollector)(nil)
var _ module.ValidatorMetrics = (*NoopCollector)(nil)

func (nc *NoopCollector) CacheEntries(resource string, entries uint)      {}
func (nc *NoopCollector) CacheHit(resource string)                        {}
func (nc *NoopCollector) CacheNotFound(resource string)                   {}
func (nc *NoopCollector) CacheMiss(resource string)                       {}
func (nc *NoopCollector) TransactionAdmitted(sizeBytes uint64)            {}
func (nc *NoopCollector) TransactionRejected(reason string)               {}
func (nc *NoopCollector) TransactionEvicted()                             {}
func (nc *NoopCollector) TransactionsExtracted(count int)                 {}
func (nc *NoopCollector) MempoolSize(entries uint, bytes uint64)          {}
func (nc *NoopCollector) TransactionsForwarded(count int, recipients int) {}
func (nc *NoopCollector) ForwardFailed()                                  {}
func (nc *NoopCollector) VoteRecorded()                                   {}
func (nc *NoopCollector) VoteRefused()                                    {}
func (nc *NoopCollector) SlotFinalized(slot uint64)                       {}
func (nc *NoopCollector) BlockInserted()                                  {}
func (nc *NoopCollector) BestForkWeight(weight uint64)                    {}
func (nc *NoopCollector) EngineSwitched(engine string)                    {}
func (nc *NoopCollector) ViewChanged(view uint64)                         {}
func (nc *NoopCollector) TotalVotingPower(power uint64)                   {}
func (nc *NoopCollector) ActiveValidators(count int)                      {}
func (nc *NoopCollector) ValidatorSlashed(kind string)                    {}
