package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "project_selector"

// Metrics 业务指标集合
// 所有方法对 nil 接收者安全，未启用指标时可直接传 nil
type Metrics struct {
	solveSubmissions *prometheus.CounterVec
	solveDuration    *prometheus.HistogramVec
	jobTransitions   *prometheus.CounterVec
	timerFirings     *prometheus.CounterVec
	callbacks        *prometheus.CounterVec
	periodTransition *prometheus.CounterVec
}

// New 创建并注册指标，reg 为空时使用默认注册表
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		solveSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "submissions_total",
			Help:      "求解请求提交次数，按模式与结果统计",
		}, []string{"mode", "outcome"}),
		solveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "request_duration_seconds",
			Help:      "调用求解服务的耗时",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2.5, 10), // 50ms .. ~190s
		}, []string{"mode"}),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "transitions_total",
			Help:      "求解任务进入终态的次数",
		}, []string{"status"}),
		timerFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "timer_firings_total",
			Help:      "定时器触发次数，按处理器与结果统计",
		}, []string{"handler", "outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callback",
			Name:      "received_total",
			Help:      "收到的求解回调次数，按处理结果统计",
		}, []string{"outcome"}),
		periodTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "period",
			Name:      "transitions_total",
			Help:      "选题周期状态迁移次数",
		}, []string{"to"}),
	}

	reg.MustRegister(
		m.solveSubmissions,
		m.solveDuration,
		m.jobTransitions,
		m.timerFirings,
		m.callbacks,
		m.periodTransition,
	)

	return m
}

// SolveSubmitted 记录一次求解提交
func (m *Metrics) SolveSubmitted(mode, outcome string) {
	if m == nil {
		return
	}
	m.solveSubmissions.WithLabelValues(mode, outcome).Inc()
}

// ObserveSolve 记录求解服务调用耗时
func (m *Metrics) ObserveSolve(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// JobTransition 记录任务进入终态
func (m *Metrics) JobTransition(status string) {
	if m == nil {
		return
	}
	m.jobTransitions.WithLabelValues(status).Inc()
}

// TimerFired 记录定时器触发
func (m *Metrics) TimerFired(handler, outcome string) {
	if m == nil {
		return
	}
	m.timerFirings.WithLabelValues(handler, outcome).Inc()
}

// CallbackReceived 记录回调处理结果
func (m *Metrics) CallbackReceived(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

// PeriodTransition 记录周期状态迁移
func (m *Metrics) PeriodTransition(to string) {
	if m == nil {
		return
	}
	m.periodTransition.WithLabelValues(to).Inc()
}
