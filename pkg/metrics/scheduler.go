package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TaskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_task_runs_total",
			Help: "Total number of scheduled task invocations",
		},
		[]string{"task"},
	)

	TaskFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_task_failures_total",
			Help: "Total number of scheduled task invocations that returned an error or panicked",
		},
		[]string{"task"},
	)

	TaskSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_task_skipped_total",
			Help: "Total number of periods skipped because the previous invocation was still running",
		},
		[]string{"task"},
	)

	ActiveTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_active_tasks",
		Help: "Number of registered tasks that have not been shut down",
	})
)
