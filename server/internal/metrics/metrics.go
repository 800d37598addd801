package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlineGauge      prometheus.Gauge
	MatchesStarted   prometheus.Counter
	MatchesCompleted prometheus.Counter
	MatchesEnded     prometheus.Counter
	Goals            prometheus.Counter
	SamplesForwarded prometheus.Counter
	SamplesDropped   prometheus.Counter
	SendBytes        prometheus.Counter
	RecvBytes        prometheus.Counter
	DroppedMessages  prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "strikas",
			Subsystem: "sessions",
			Name:      "online_total",
			Help:      "Connected sessions",
		}),
		MatchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "match",
			Name:      "started_total",
			Help:      "Matches started",
		}),
		MatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "match",
			Name:      "completed_total",
			Help:      "Matches completed by reaching the score threshold",
		}),
		MatchesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "match",
			Name:      "ended_total",
			Help:      "Matches ended by disconnect",
		}),
		Goals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "match",
			Name:      "goals_total",
			Help:      "Goals recorded",
		}),
		SamplesForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "relay",
			Name:      "samples_forwarded_total",
			Help:      "Gameplay samples relayed to peers",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "relay",
			Name:      "samples_dropped_total",
			Help:      "Gameplay samples dropped for unauthorized senders",
		}),
		SendBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "net",
			Name:      "send_bytes_total",
			Help:      "Total outbound bytes",
		}),
		RecvBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "net",
			Name:      "recv_bytes_total",
			Help:      "Total inbound bytes",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "strikas",
			Subsystem: "net",
			Name:      "dropped_messages_total",
			Help:      "Dropped outbound messages due to backpressure",
		}),
	}

	prometheus.MustRegister(
		m.OnlineGauge,
		m.MatchesStarted,
		m.MatchesCompleted,
		m.MatchesEnded,
		m.Goals,
		m.SamplesForwarded,
		m.SamplesDropped,
		m.SendBytes,
		m.RecvBytes,
		m.DroppedMessages,
	)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
