package notify

import (
	"context"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// LogListener writes every engine notification to the log.
type LogListener struct{}

// NewLogListener creates a LogListener.
func NewLogListener() *LogListener {
	return new(LogListener)
}

// OnAlarmStatusChanged logs the new alarm status, as a warning when the alarm sounds.
func (*LogListener) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	if status == domain.AlarmTriggered {
		logger.WarnKV(ctx, "ALARM! Intruder detected", "alarm_status", status.String())

		return
	}

	logger.InfoKV(ctx, "Alarm status is now", "alarm_status", status.String())
}

// OnCatDetected logs the classifier result.
func (*LogListener) OnCatDetected(ctx context.Context, detected bool) {
	if detected {
		logger.InfoKV(ctx, "Cat spotted on camera")

		return
	}

	logger.DebugKV(ctx, "No cat on camera")
}

// OnSensorStatusChanged logs that sensors were reset.
func (*LogListener) OnSensorStatusChanged(ctx context.Context) {
	logger.InfoKV(ctx, "Sensor states refreshed")
}
