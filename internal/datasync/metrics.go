package datasync

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "airgradient_"

	resultSuccess = "success"
	resultPartial = "partial"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	syncRuns     *prometheus.CounterVec
	syncLatency  *prometheus.HistogramVec
	syncRecords  *prometheus.CounterVec
	fetchRetries prometheus.Counter
)

// InitMetrics registers the sync collectors with registerer, or the
// default registry when it is nil. Until it is called every Observe
// helper is a no-op.
func InitMetrics(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		syncRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_runs_total",
				Help: "Total location sync runs by result",
			},
			[]string{"result"},
		)
		syncLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sync_duration_seconds",
				Help:    "Location sync duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		syncRecords = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_records_total",
				Help: "Measurements processed by outcome",
			},
			[]string{"outcome"},
		)
		fetchRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_retries_total",
				Help: "Retried vendor API fetches",
			},
		)

		registerer.MustRegister(syncRuns, syncLatency, syncRecords, fetchRetries)
	})
}

func observeSync(result SyncResult, duration time.Duration) {
	outcome := resultSuccess
	switch {
	case !result.Success && result.TotalSaved+result.TotalUpdated > 0:
		outcome = resultPartial
	case !result.Success:
		outcome = resultError
	}

	if syncRuns != nil {
		syncRuns.WithLabelValues(outcome).Inc()
	}
	if syncLatency != nil {
		syncLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
	if syncRecords != nil {
		syncRecords.WithLabelValues("saved").Add(float64(result.TotalSaved))
		syncRecords.WithLabelValues("updated").Add(float64(result.TotalUpdated))
		syncRecords.WithLabelValues("skipped").Add(float64(result.TotalSkipped))
	}
}

func incFetchRetry() {
	if fetchRetries != nil {
		fetchRetries.Inc()
	}
}
