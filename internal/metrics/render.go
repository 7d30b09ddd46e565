package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcv",
			Subsystem: "render",
			Name:      "documents_rendered_total",
			Help:      "生成的文档总数。",
		},
		[]string{"status"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pixelcv",
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "单个文档从合成到写出的耗时（秒）。",
			Buckets:   prometheus.DefBuckets,
		},
	)

	assetsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcv",
			Subsystem: "render",
			Name:      "assets_skipped_total",
			Help:      "因无法解码而跳过的背景或图片数量。",
		},
		[]string{"kind"},
	)

	fieldsDrawn = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcv",
			Subsystem: "render",
			Name:      "fields_drawn_total",
			Help:      "按类型统计已绘制的字段数量。",
		},
		[]string{"kind"},
	)

	bulkDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcv",
			Subsystem: "bulk",
			Name:      "deliveries_total",
			Help:      "批量生成中交付的产物数量。",
		},
		[]string{"status"},
	)
)

// ObserveRender 记录一次文档生成结果。
func ObserveRender(start time.Time, err error) {
	renderDuration.Observe(time.Since(start).Seconds())
	documentsRendered.WithLabelValues(status(err)).Inc()
}

// AssetSkipped 记录一次被跳过的资源，kind 为 background 或 image。
func AssetSkipped(kind string) {
	assetsSkipped.WithLabelValues(kind).Inc()
}

// FieldDrawn 记录一次成功绘制的字段。
func FieldDrawn(kind string) {
	fieldsDrawn.WithLabelValues(kind).Inc()
}

// BulkDelivery 记录批量生成中的一次交付。
func BulkDelivery(err error) {
	bulkDeliveries.WithLabelValues(status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
