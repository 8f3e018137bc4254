package udns

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics holds the counters of one resolver.
// Counters are safe for concurrent reads.
type Metrics struct {
	set *metrics.Set

	QueriesSent     *metrics.Counter
	CacheHits       *metrics.Counter
	CacheMisses     *metrics.Counter
	Answers         *metrics.Counter
	NegativeReplies *metrics.Counter
	DroppedPackets  *metrics.Counter
	Retransmits     *metrics.Counter
	Timeouts        *metrics.Counter
	SelfAnswers     *metrics.Counter
}

func newMetrics() *Metrics {
	set := metrics.NewSet()
	return &Metrics{
		set:             set,
		QueriesSent:     set.NewCounter("udns_queries_sent_total"),
		CacheHits:       set.NewCounter("udns_cache_hits_total"),
		CacheMisses:     set.NewCounter("udns_cache_misses_total"),
		Answers:         set.NewCounter("udns_answers_total"),
		NegativeReplies: set.NewCounter("udns_negative_replies_total"),
		DroppedPackets:  set.NewCounter("udns_dropped_packets_total"),
		Retransmits:     set.NewCounter("udns_retransmits_total"),
		Timeouts:        set.NewCounter("udns_timeouts_total"),
		SelfAnswers:     set.NewCounter("udns_self_answers_total"),
	}
}

// WritePrometheus writes all counters in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
