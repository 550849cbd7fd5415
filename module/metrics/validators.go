package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type ValidatorCollector struct {
	totalPower prometheus.Gauge
	active     prometheus.Gauge
	slashed    *prometheus.CounterVec
}

func NewValidatorCollector(registerer prometheus.Registerer) *ValidatorCollector {
	vc := &ValidatorCollector{
		totalPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemValidators,
			Name:      "total_voting_power",
			Help:      "sum of voting power over all known validators",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemValidators,
			Name:      "active",
			Help:      "number of validators in the active set",
		}),
		slashed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemValidators,
			Name:      "slashing_events_total",
			Help:      "number of slashing events by evidence kind",
		}, []string{LabelKind}),
	}
	registerer.MustRegister(vc.totalPower, vc.active, vc.slashed)
	return vc
}

func (vc *ValidatorCollector) TotalVotingPower(power uint64) {
	vc.totalPower.Set(float64(power))
}

func (vc *ValidatorCollector) ActiveValidators(count int) {
	vc.active.Set(float64(count))
}

func (vc *ValidatorCollector) ValidatorSlashed(kind string) {
	vc.slashed.WithLabelValues(kind).Inc()
}
