package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/3chihiro/evm-tool/modules/schedule/domain/task"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of imported CSV data rows broken down by result.",
	}, []string{"result"})

	importErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "import",
		Name:      "errors_total",
		Help:      "Total number of row validation errors broken down by column.",
	}, []string{"column"})

	importDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "evm",
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Time spent tokenizing and validating one CSV import.",
		Buckets:   prometheus.DefBuckets,
	})

	scheduleCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evm",
		Subsystem: "schedule",
		Name:      "commits_total",
		Help:      "Total number of schedule edits broken down by change type and result.",
	}, []string{"change_type", "result"})
)

func recordImport(res *task.ImportResult, elapsed time.Duration) {
	importRows.WithLabelValues("imported").Add(float64(res.Stats.Imported))
	importRows.WithLabelValues("failed").Add(float64(res.Stats.Failed))
	for column, n := range res.Stats.ByColumn {
		importErrors.WithLabelValues(column).Add(float64(n))
	}
	importDuration.Observe(elapsed.Seconds())
}

func recordCommit(changeType string, applied bool) {
	result := "rejected"
	if applied {
		result = "applied"
	}
	scheduleCommits.WithLabelValues(changeType, result).Inc()
}
