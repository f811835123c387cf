// Package metrics 提供 Prometheus helper，包含 HTTP 与期权业务指标
package metrics

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/optionstrading/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 业务指标
	OptionsCreatedTotal   prometheus.Counter
	OptionsBoughtTotal    prometheus.Counter
	OptionsExercisedTotal prometheus.Counter
	OptionsCanceledTotal  prometheus.Counter
	FlashLoanExercises    prometheus.Counter
	OptionsOutstanding    prometheus.Gauge
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OptionsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "created_total",
			Help:      "Total options created",
		}),
		OptionsBoughtTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "bought_total",
			Help:      "Total options bought",
		}),
		OptionsExercisedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "exercised_total",
			Help:      "Total options exercised",
		}),
		OptionsCanceledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "canceled_total",
			Help:      "Total options canceled",
		}),
		FlashLoanExercises: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "flashloan_exercises_total",
			Help:      "Total flash-loan financed exercises",
		}),
		OptionsOutstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "options",
			Subsystem: serviceName,
			Name:      "outstanding",
			Help:      "Number of options awaiting purchase or exercise",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OptionsCreatedTotal,
		m.OptionsBoughtTotal,
		m.OptionsExercisedTotal,
		m.OptionsCanceledTotal,
		m.FlashLoanExercises,
		m.OptionsOutstanding,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 返回 Prometheus 的 gin 处理函数
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
