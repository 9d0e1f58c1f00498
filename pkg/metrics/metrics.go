package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"video_pipeline_service/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// JobsSubmitted jobs accepted by the queue, created=false for deduplicated submissions
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_jobs_submitted_total",
		Help: "Transcode jobs submitted to the queue",
	}, []string{"created"})
	// JobOutcomes attempt results: completed, retried, exhausted
	JobOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_job_outcomes_total",
		Help: "Transcode attempt outcomes",
	}, []string{"outcome"})
	// ActiveJobs attempts running on this node
	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_worker_active_jobs",
		Help: "Number of jobs currently processing on this node",
	})
	// StepDuration worker step timings
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Time taken by each transcode step",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"step"})
	// IngestedMessages notification handling results: admitted, discarded, released
	IngestedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_ingested_messages_total",
		Help: "Upload notifications handled by the ingestor",
	}, []string{"result"})
	// DeadLetters records appended to the dead letter sink
	DeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_dead_letters_total",
		Help: "Jobs written to the dead letter sink",
	})
)

// ObserveStep record the duration since start for step
func ObserveStep(step string, start time.Time) {
	StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

// Serve expose /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
