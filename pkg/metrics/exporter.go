package metrics

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/downfa11-org/cursus-quickstart/util"
)

func init() {
	prometheus.MustRegister(MessagesHandled, MessagesDuplicate, AckFailures, MessagesPerSec, AssignedQueues, RebalanceWait, CommitFailures)
	prometheus.MustRegister(TaskRuns, TaskFailures, TaskSkipped, ActiveTasks)
}

// StartMetricsServer serves /metrics on the given port in the background.
// The returned server can be shut down by the caller.
func StartMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		util.Info("[METRICS] Prometheus exporter listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("[METRICS] Failed to start metrics server: %v", err)
		}
	}()
	return srv
}

// ObserveThroughput sets the throughput gauge from a handled count and window length.
func ObserveThroughput(handled int64, elapsedSeconds float64) {
	if elapsedSeconds > 0 {
		MessagesPerSec.Set(float64(handled) / elapsedSeconds)
	}
}
