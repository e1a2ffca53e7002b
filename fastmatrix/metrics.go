package fastmatrix

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	tracer = otel.Tracer("vlmlists.fastmatrix")

	// referencesAbsorbed counts child references handed to a coarse parent
	referencesAbsorbed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlmlists_merge_references_absorbed_total",
		Help: "Child partner references absorbed into coarse level entries",
	}, []string{"direction", "loop_type"})

	speedRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vlmlists_speed_ratio",
		Help: "Partner references before the last merge divided by the references after it",
	}, []string{"direction", "loop_type"})

	interactionEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vlmlists_interaction_entries",
		Help: "Entries in the compacted interaction list",
	}, []string{"direction", "loop_type"})

	mergeLevelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vlmlists_merge_level_duration_seconds",
		Help:    "Time to merge one mesh level",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	}, []string{"direction", "loop_type"})
)
