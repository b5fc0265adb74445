package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports work statistics. Each Metrics owns its collectors so
// several topologies can register into separate registries.
type Metrics struct {
	WorkCalls        *prometheus.CounterVec
	WorkErrors       *prometheus.CounterVec
	BytesConsumed    *prometheus.CounterVec
	BytesProduced    *prometheus.CounterVec
	MsgsConsumed     *prometheus.CounterVec
	MsgsProduced     *prometheus.CounterVec
	LabelsPropagated *prometheus.CounterVec
	WorkDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		WorkCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "work_calls_total",
			Help:      "Work calls per node",
		}, []string{"node"}),
		WorkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "work_errors_total",
			Help:      "Work calls that returned an error",
		}, []string{"node"}),
		BytesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "bytes_consumed_total",
			Help:      "Bytes consumed from input ports",
		}, []string{"node"}),
		BytesProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "bytes_produced_total",
			Help:      "Bytes produced on output ports",
		}, []string{"node"}),
		MsgsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "messages_consumed_total",
			Help:      "Messages popped from input ports",
		}, []string{"node"}),
		MsgsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "messages_produced_total",
			Help:      "Messages posted on output ports",
		}, []string{"node"}),
		LabelsPropagated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "labels_propagated_total",
			Help:      "Consumed labels handed to propagateLabels",
		}, []string{"node"}),
		WorkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blockbridge",
			Subsystem: "engine",
			Name:      "work_duration_seconds",
			Help:      "Duration of work calls",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"node"}),
	}
	for _, c := range []prometheus.Collector{
		m.WorkCalls, m.WorkErrors, m.BytesConsumed, m.BytesProduced,
		m.MsgsConsumed, m.MsgsProduced, m.LabelsPropagated, m.WorkDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type workDelta struct {
	failed       bool
	consumed     int
	produced     int
	msgsConsumed int
	msgsProduced int
	propagated   int
	seconds      float64
}

func (m *Metrics) observe(node string, d workDelta) {
	if m == nil {
		return
	}
	m.WorkCalls.WithLabelValues(node).Inc()
	if d.failed {
		m.WorkErrors.WithLabelValues(node).Inc()
	}
	m.BytesConsumed.WithLabelValues(node).Add(float64(d.consumed))
	m.BytesProduced.WithLabelValues(node).Add(float64(d.produced))
	m.MsgsConsumed.WithLabelValues(node).Add(float64(d.msgsConsumed))
	m.MsgsProduced.WithLabelValues(node).Add(float64(d.msgsProduced))
	m.LabelsPropagated.WithLabelValues(node).Add(float64(d.propagated))
	m.WorkDuration.WithLabelValues(node).Observe(d.seconds)
}
