package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConsensusCollector reports vote ledger, fork graph and engine activity.
type ConsensusCollector struct {
	votesRecorded  prometheus.Counter
	votesRefused   prometheus.Counter
	finalizedSlot  prometheus.Gauge
	blocksInserted prometheus.Counter
	bestForkWeight prometheus.Gauge
	engineSwitches *prometheus.CounterVec
	view           prometheus.Gauge
}

// NewConsensusCollector created a new consensus collector
func NewConsensusCollector(registerer prometheus.Registerer) *ConsensusCollector {
	cc := &ConsensusCollector{
		votesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemTower,
			Name:      "votes_recorded_total",
			Help:      "number of votes stored by the ledger",
		}),
		votesRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemTower,
			Name:      "votes_refused_total",
			Help:      "number of votes refused because the voter was locked out",
		}),
		finalizedSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemTower,
			Name:      "finalized_slot",
			Help:      "highest finalized slot",
		}),
		blocksInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemForks,
			Name:      "blocks_inserted_total",
			Help:      "number of blocks added to the fork graph",
		}),
		bestForkWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemForks,
			Name:      "best_fork_weight",
			Help:      "cumulative vote weight of the selected fork head",
		}),
		engineSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemEngine,
			Name:      "switches_total",
			Help:      "number of times the active consensus engine was replaced, by new engine",
		}, []string{LabelEngine}),
		view: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemEngine,
			Name:      "view",
			Help:      "current view, incremented on every liveness view change",
		}),
	}
	registerer.MustRegister(cc.votesRecorded, cc.votesRefused, cc.finalizedSlot,
		cc.blocksInserted, cc.bestForkWeight, cc.engineSwitches, cc.view)
	return cc
}

func (cc *ConsensusCollector) VoteRecorded() {
	cc.votesRecorded.Inc()
}

func (cc *ConsensusCollector) VoteRefused() {
	cc.votesRefused.Inc()
}

func (cc *ConsensusCollector) SlotFinalized(slot uint64) {
	cc.finalizedSlot.Set(float64(slot))
}

func (cc *ConsensusCollector) BlockInserted() {
	cc.blocksInserted.Inc()
}

func (cc *ConsensusCollector) BestForkWeight(weight uint64) {
	cc.bestForkWeight.Set(float64(weight))
}

func (cc *ConsensusCollector) EngineSwitched(engine string) {
	cc.engineSwitches.WithLabelValues(engine).Inc()
}

func (cc *ConsensusCollector) ViewChanged(view uint64) {
	cc.view.Set(float64(view))
}
