package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	liveModels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "servingd",
		Subsystem: "orchestrator",
		Name:      "live_models",
		Help:      "Model processes currently tracked",
	})

	freePorts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "servingd",
		Subsystem: "orchestrator",
		Name:      "free_ports",
		Help:      "Ports left in the pool",
	})

	spawnsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "servingd",
		Subsystem: "orchestrator",
		Name:      "spawns_total",
		Help:      "Model processes started",
	})

	killsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servingd",
			Subsystem: "orchestrator",
			Name:      "kills_total",
			Help:      "Model processes stopped, by reason",
		},
		[]string{"reason"},
	)

	predictAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "servingd",
			Subsystem: "orchestrator",
			Name:      "predict_attempts_total",
			Help:      "Invocation attempts, by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(liveModels, freePorts, spawnsTotal, killsTotal, predictAttempts)
}

// updateGauges publishes m's current occupancy. With several managers in one
// process (tests) the last writer wins.
func updateGauges(m *Manager) {
	liveModels.Set(float64(m.records.Len()))
	freePorts.Set(float64(m.ports.Free()))
}
