// Package metrics provides Prometheus metrics for the volume attachment
// drivers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "blockattach"
)

// Operation types for driver operations.
const (
	OpConnect    = "Connect"
	OpDisconnect = "Disconnect"
)

// Driver variants, used as the "driver" label on every metric below.
const (
	DriverLocalBlock = "local_block"
	DriverFake       = "fake"
	DriverNetworkURI = "network_uri"
	DriverISCSI      = "iscsi"
)

// External tool names, used as the "tool" label on tool invocation metrics.
const (
	ToolISCSIAdm  = "iscsiadm"
	ToolMultipath = "multipath"
)

var (
	// Driver operation metrics
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of Connect/Disconnect calls by driver, operation and status",
		},
		[]string{"driver", "operation", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of Connect/Disconnect calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"driver", "operation"},
	)

	// Process-wide lock metrics
	lockWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_volume_lock_wait_seconds",
			Help:      "Time a call spent waiting to acquire the process-wide connect_volume lock",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		},
		[]string{"driver", "operation"},
	)

	lockHoldersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connect_volume_waiters",
			Help:      "Number of calls currently blocked waiting on the connect_volume lock",
		},
	)

	// Device-node poll metrics
	deviceScanRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_scan_retries_total",
			Help:      "Number of device-node poll retries consumed waiting for a path to appear under /dev/disk/by-path",
		},
		[]string{"driver"},
	)

	deviceScanExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_scan_exhausted_total",
			Help:      "Number of times the device-node poll budget was exhausted without the path appearing",
		},
	)

	// External tool metrics
	toolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Total external tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	// Session inventory metrics
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_iscsi_sessions",
			Help:      "Number of iSCSI sessions reported by the last session list parse",
		},
	)
)

// RecordOperation records the outcome of a Connect/Disconnect call.
func RecordOperation(driver, operation, status string, duration time.Duration) {
	operationsTotal.WithLabelValues(driver, operation, status).Inc()
	operationDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
}

// ObserveLockWait records how long a call blocked on lock.ConnectVolume
// before acquiring it.
func ObserveLockWait(driver, operation string, wait time.Duration) {
	lockWaitDuration.WithLabelValues(driver, operation).Observe(wait.Seconds())
}

// IncLockWaiters and DecLockWaiters track calls currently blocked on the
// process-wide lock; call IncLockWaiters before Acquire and DecLockWaiters
// as soon as Acquire returns.
func IncLockWaiters() { lockHoldersInFlight.Inc() }
func DecLockWaiters() { lockHoldersInFlight.Dec() }

// RecordDeviceScanRetry increments the retry counter for a device-node
// poll miss.
func RecordDeviceScanRetry(driver string) {
	deviceScanRetriesTotal.WithLabelValues(driver).Inc()
}

// RecordDeviceScanExhausted increments the counter for a poll budget
// exhausted without the device node appearing.
func RecordDeviceScanExhausted() {
	deviceScanExhaustedTotal.Inc()
}

// RecordToolInvocation records the outcome of an external tool call.
func RecordToolInvocation(tool, status string) {
	toolInvocationsTotal.WithLabelValues(tool, status).Inc()
}

// SetActiveSessions records the session count from the last session list
// parse.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// OperationTimer helps time Connect/Disconnect calls and record metrics
// automatically.
type OperationTimer struct {
	start     time.Time
	driver    string
	operation string
}

// NewOperationTimer creates a new timer for a driver operation.
func NewOperationTimer(driver, operation string) *OperationTimer {
	return &OperationTimer{
		start:     time.Now(),
		driver:    driver,
		operation: operation,
	}
}

// ObserveSuccess records a successful operation.
func (t *OperationTimer) ObserveSuccess() {
	RecordOperation(t.driver, t.operation, "success", time.Since(t.start))
}

// ObserveError records a failed operation.
func (t *OperationTimer) ObserveError() {
	RecordOperation(t.driver, t.operation, "error", time.Since(t.start))
}
