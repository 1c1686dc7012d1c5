package services

import "github.com/prometheus/client_golang/prometheus"

var (
	reportsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bribe_reports_created_total",
		Help: "Reports committed.",
	})

	evidenceUploadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "evidence_upload_failures_total",
		Help: "Evidence batches aborted by an upload failure.",
	})

	trackingCollisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_code_collisions_total",
		Help: "Tracking code collisions by where they were detected.",
	}, []string{"stage"}) // precheck | commit
)

func init() {
	prometheus.MustRegister(reportsCreated, evidenceUploadFailures, trackingCollisions)
}
