package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. Its methods satisfy the
// collector interfaces of the iocache and splitter packages.
type Metrics struct {
	// Splitter metrics
	RowsWritten  prometheus.Counter
	FilesWritten prometheus.Counter
	FileRows     prometheus.Histogram
	TriggerRuns  *prometheus.CounterVec

	// Buffer cache metrics
	BytesSubmitted    prometheus.Counter
	WriteRetries      prometheus.Counter
	WriteErrors       prometheus.Counter
	FreeBuffers       prometheus.Gauge
	InFlightWrites    prometheus.Gauge
	DrainStallSeconds prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		RowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "csvsplit_rows_written_total",
			Help: "Total number of records written",
		}),
		FilesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "csvsplit_files_written_total",
			Help: "Total number of output files finished",
		}),
		FileRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "csvsplit_file_rows",
			Help:    "Records per finished output file",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}),
		TriggerRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "csvsplit_trigger_runs_total",
			Help: "Trigger command executions by status",
		}, []string{"status"}),

		BytesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "csvsplit_bytes_submitted_total",
			Help: "Total bytes handed to the kernel for writing",
		}),
		WriteRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "csvsplit_write_retries_total",
			Help: "Write resubmissions after retryable completion errors",
		}),
		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "csvsplit_write_errors_total",
			Help: "Fatal write completion errors",
		}),
		FreeBuffers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "csvsplit_free_buffers",
			Help: "Buffers currently in the free pool",
		}),
		InFlightWrites: factory.NewGauge(prometheus.GaugeOpts{
			Name: "csvsplit_in_flight_writes",
			Help: "Writes currently owned by the kernel",
		}),
		DrainStallSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "csvsplit_drain_stall_seconds",
			Help:    "Time spent waiting for outstanding writes on a full-barrier drain",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Splitter collector operations.

func (m *Metrics) IncRowsWritten()          { m.RowsWritten.Inc() }
func (m *Metrics) IncFilesWritten()         { m.FilesWritten.Inc() }
func (m *Metrics) ObserveFileRows(rows int) { m.FileRows.Observe(float64(rows)) }
func (m *Metrics) IncTriggerRuns(status string) {
	m.TriggerRuns.WithLabelValues(status).Inc()
}

// Buffer cache collector operations.

func (m *Metrics) SetFreeBuffers(n int)              { m.FreeBuffers.Set(float64(n)) }
func (m *Metrics) SetInFlightWrites(n int)           { m.InFlightWrites.Set(float64(n)) }
func (m *Metrics) AddBytesSubmitted(n int)           { m.BytesSubmitted.Add(float64(n)) }
func (m *Metrics) ObserveDrainStall(seconds float64) { m.DrainStallSeconds.Observe(seconds) }
func (m *Metrics) IncWriteRetries()                  { m.WriteRetries.Inc() }
func (m *Metrics) IncWriteErrors()                   { m.WriteErrors.Inc() }
