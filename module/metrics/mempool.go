package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MempoolCollector reports transaction pool activity.
type MempoolCollector struct {
	admitted   prometheus.Counter
	admittedB  prometheus.Counter
	rejected   *prometheus.CounterVec
	evicted    prometheus.Counter
	extracted  prometheus.Counter
	entries    prometheus.Gauge
	bytes      prometheus.Gauge
	forwarded  prometheus.Counter
	fwdFailed  prometheus.Counter
	fwdRecipts prometheus.Gauge
}

func NewMempoolCollector(registerer prometheus.Registerer) *MempoolCollector {
	mc := &MempoolCollector{
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "admitted_transactions_total",
			Help:      "number of transactions admitted to the pool",
		}),
		admittedB: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "admitted_bytes_total",
			Help:      "serialized size of all transactions admitted to the pool",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "rejected_transactions_total",
			Help:      "number of refused submissions by reason",
		}, []string{LabelReason}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "evicted_transactions_total",
			Help:      "number of pending transactions displaced by replace-by-fee",
		}),
		extracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "extracted_transactions_total",
			Help:      "number of transactions handed to block assembly",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "entries",
			Help:      "current number of pending transactions",
		}),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "bytes",
			Help:      "current serialized size of all pending transactions",
		}),
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "forwarded_transactions_total",
			Help:      "number of transactions pushed to upcoming leaders",
		}),
		fwdFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "forward_failures_total",
			Help:      "number of failed per-recipient forwarding sends",
		}),
		fwdRecipts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceConsensus,
			Subsystem: subsystemMempool,
			Name:      "forward_recipients",
			Help:      "number of leaders targeted by the last forwarding round",
		}),
	}
	registerer.MustRegister(mc.admitted, mc.admittedB, mc.rejected, mc.evicted, mc.extracted,
		mc.entries, mc.bytes, mc.forwarded, mc.fwdFailed, mc.fwdRecipts)
	return mc
}

func (mc *MempoolCollector) TransactionAdmitted(sizeBytes uint64) {
	mc.admitted.Inc()
	mc.admittedB.Add(float64(sizeBytes))
}

func (mc *MempoolCollector) TransactionRejected(reason string) {
	mc.rejected.WithLabelValues(reason).Inc()
}

func (mc *MempoolCollector) TransactionEvicted() {
	mc.evicted.Inc()
}

func (mc *MempoolCollector) TransactionsExtracted(count int) {
	mc.extracted.Add(float64(count))
}

func (mc *MempoolCollector) MempoolSize(entries uint, bytes uint64) {
	mc.entries.Set(float64(entries))
	mc.bytes.Set(float64(bytes))
}

func (mc *MempoolCollector) TransactionsForwarded(count int, recipients int) {
	mc.forwarded.Add(float64(count))
	mc.fwdRecipts.Set(float64(recipients))
}

func (mc *MempoolCollector) ForwardFailed() {
	mc.fwdFailed.Inc()
}
