package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rental"

var (
	once sync.Once

	httpReqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"path", "method", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"},
	)
	bookingCreate = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "booking_create_total", Help: "Booking create attempts by outcome"},
		[]string{"outcome"},
	)
	bookingTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "booking_transition_total", Help: "Applied booking status transitions"},
		[]string{"from", "to"},
	)
	lockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "booking_lock_wait_seconds",
		Help:      "Time spent waiting for the per-property booking lock",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	})
)

// 预订创建结果
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Register 可重复调用
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpReqTotal, httpLatency, bookingCreate, bookingTransition, lockWait)
	})
}

func ObserveHTTP(path, method string, status int, d time.Duration) {
	httpReqTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(path, method).Observe(d.Seconds())
}

func BookingCreated(outcome string) { bookingCreate.WithLabelValues(outcome).Inc() }

func BookingTransition(from, to string) { bookingTransition.WithLabelValues(from, to).Inc() }

func LockWait(d time.Duration) { lockWait.Observe(d.Seconds()) }
