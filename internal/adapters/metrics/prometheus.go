// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	tilesPlanned      prometheus.Gauge
	tilesCompleted    prometheus.Gauge
	tilesRendered     *prometheus.CounterVec
	renderDuration    prometheus.Histogram
	sinkWrites        *prometheus.CounterVec
	sinkWriteDuration *prometheus.HistogramVec
	compactionBlobs   *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "tilery"
	}

	return &Collector{
		tilesPlanned: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tiles_planned",
				Help:      "Number of tiles the current run will render",
			},
		),

		tilesCompleted: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tiles_completed",
				Help:      "Number of tiles rendered so far in the current run",
			},
		),

		tilesRendered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tiles_rendered_total",
				Help:      "Total number of tile render attempts",
			},
			[]string{"format", "status"},
		),

		renderDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tile_render_duration_seconds",
				Help:      "Render and encode duration per tile in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		sinkWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_writes_total",
				Help:      "Total number of sink write operations",
			},
			[]string{"sink", "status"},
		),

		sinkWriteDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sink_write_duration_seconds",
				Help:      "Sink write duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sink"},
		),

		compactionBlobs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compaction_blobs_total",
				Help:      "Payloads seen by the compaction pass",
			},
			[]string{"result"},
		),
	}
}

// SetTilesPlanned sets the number of tiles the current run will render.
func (c *Collector) SetTilesPlanned(count int) {
	c.tilesPlanned.Set(float64(count))
}

// SetTilesCompleted sets the number of tiles rendered so far.
func (c *Collector) SetTilesCompleted(count int) {
	c.tilesCompleted.Set(float64(count))
}

// IncTilesRendered increments the rendered tile counter.
func (c *Collector) IncTilesRendered(format string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.tilesRendered.WithLabelValues(format, status).Inc()
}

// ObserveRenderDuration records one tile render+encode duration.
func (c *Collector) ObserveRenderDuration(duration time.Duration) {
	c.renderDuration.Observe(duration.Seconds())
}

// IncSinkWrites increments the sink write counter.
func (c *Collector) IncSinkWrites(sink string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.sinkWrites.WithLabelValues(sink, status).Inc()
}

// ObserveSinkWriteDuration records one sink write duration.
func (c *Collector) ObserveSinkWriteDuration(sink string, duration time.Duration) {
	c.sinkWriteDuration.WithLabelValues(sink).Observe(duration.Seconds())
}

// IncCompactionBlobs counts blobs seen by the compaction pass.
func (c *Collector) IncCompactionBlobs(deduplicated bool) {
	result := "stored"
	if deduplicated {
		result = "deduplicated"
	}
	c.compactionBlobs.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
