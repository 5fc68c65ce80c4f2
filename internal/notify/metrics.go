package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

const metricsNamespace = "catpoint"

// MetricsListener exports alarm and cat detection activity to Prometheus.
type MetricsListener struct {
	// alarmStatus holds the current alarm severity, 0 to 2.
	alarmStatus prometheus.Gauge
	// alarmChanges counts alarm status writes by status name.
	alarmChanges *prometheus.CounterVec
	// catDetections counts classifier results.
	catDetections *prometheus.CounterVec
}

// NewMetricsListener creates the collectors and registers them on registerer.
func NewMetricsListener(registerer prometheus.Registerer) (*MetricsListener, error) {
	m := &MetricsListener{
		alarmStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "alarm_status",
			Help:      "Current alarm status: 0 no alarm, 1 pending, 2 alarm.",
		}),
		alarmChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alarm_status_changes_total",
			Help:      "Number of alarm status changes by new status.",
		}, []string{"status"}),
		catDetections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cat_detections_total",
			Help:      "Number of classified camera images by result.",
		}, []string{"result"}),
	}

	for _, collector := range []prometheus.Collector{m.alarmStatus, m.alarmChanges, m.catDetections} {
		if err := registerer.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}

	return m, nil
}

// OnAlarmStatusChanged updates the gauge and counts the change.
func (m *MetricsListener) OnAlarmStatusChanged(_ context.Context, status domain.AlarmStatus) {
	m.alarmStatus.Set(float64(status))
	m.alarmChanges.WithLabelValues(status.String()).Inc()
}

// OnCatDetected counts the classifier result.
func (m *MetricsListener) OnCatDetected(_ context.Context, detected bool) {
	m.catDetections.WithLabelValues(strconv.FormatBool(detected)).Inc()
}
