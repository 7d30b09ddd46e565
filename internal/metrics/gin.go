package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute 汇总所有未命中路由的请求，避免把任意 URL 写进标签。
const unmatchedRoute = "unmatched"

var (
	registerOnce sync.Once

	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelcv",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "按路由模板统计的请求耗时（秒），不含 WebSocket 连接。",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelcv",
			Subsystem: "http",
			Name:      "responses_total",
			Help:      "按路由模板与状态码统计的响应数。",
		},
		[]string{"method", "route", "code"},
	)

	wsConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pixelcv",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "当前打开的 WebSocket 连接，kind 为 notify 或 editor。",
		},
		[]string{"kind"},
	)

	editorSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixelcv",
			Subsystem: "editor",
			Name:      "sessions_active",
			Help:      "内存中存活的编辑会话数量。",
		},
	)
)

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpLatency, httpResponses, wsConnections, editorSessions)
	})
}

// GinMiddleware 按路由模板记录请求耗时与响应码。WebSocket 升级请求
// 只计入响应数，连接时长由 WSOpened 单独跟踪。
func GinMiddleware() gin.HandlerFunc {
	register()

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		httpResponses.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		if !c.IsWebsocket() {
			httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		}
	}
}

// WSOpened 记录一条新连接，返回的函数在连接关闭时调用。
func WSOpened(kind string) (closed func()) {
	register()
	g := wsConnections.WithLabelValues(kind)
	g.Inc()
	var once sync.Once
	return func() { once.Do(g.Dec) }
}

// SetEditorSessions 上报当前编辑会话数。
func SetEditorSessions(n int) {
	register()
	editorSessions.Set(float64(n))
}
