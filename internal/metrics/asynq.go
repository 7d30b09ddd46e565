package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcv",
			Subsystem: "asynq",
			Name:      "tasks_total",
			Help:      "按任务类型与结果（ok / retry / skip_retry）统计的任务数。",
		},
		[]string{"task_type", "outcome"},
	)

	taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelcv",
			Subsystem: "asynq",
			Name:      "task_duration_seconds",
			Help:      "任务处理耗时（秒）。批量生成包含交付间的停顿。",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"task_type"},
	)

	tasksRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pixelcv",
			Subsystem: "asynq",
			Name:      "tasks_in_progress",
			Help:      "当前正在处理的任务数量。",
		},
		[]string{"task_type"},
	)
)

// AsynqMetricsMiddleware 记录任务耗时与结果。返回 asynq.SkipRetry 的任务
// 记为 skip_retry，其余错误记为 retry（是否真正重试由任务的 MaxRetry 决定）。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			running := tasksRunning.WithLabelValues(taskType)
			running.Inc()
			defer running.Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())
			taskOutcomes.WithLabelValues(taskType, taskOutcome(err)).Inc()
			return err
		})
	}
}

func taskOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asynq.SkipRetry):
		return "skip_retry"
	default:
		return "retry"
	}
}
