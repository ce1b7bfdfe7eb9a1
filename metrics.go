package statuslight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statuslight",
		Subsystem: "strip",
		Name:      "renders_total",
		Help:      "Segment renders by segment and result",
	}, []string{"segment", "result"})

	deviceAllocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statuslight",
		Subsystem: "strip",
		Name:      "allocations_total",
		Help:      "LED strip device allocations by result",
	}, []string{"result"})

	deviceFlushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statuslight",
		Subsystem: "strip",
		Name:      "flush_errors_total",
		Help:      "Failed or timed out LED strip flushes",
	})

	allocatedPixels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statuslight",
		Subsystem: "strip",
		Name:      "allocated_pixels",
		Help:      "Pixel count of the currently allocated LED strip",
	})

	triggerFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statuslight",
		Subsystem: "schedule",
		Name:      "fires_total",
		Help:      "Scheduled trigger fires by segment and result",
	}, []string{"segment", "result"})

	scheduleRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "statuslight",
		Subsystem: "schedule",
		Name:      "rebuilds_total",
		Help:      "Trigger set rebuilds",
	})

	armedTriggers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "statuslight",
		Subsystem: "schedule",
		Name:      "armed_triggers",
		Help:      "Number of triggers in the live trigger set",
	})
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
