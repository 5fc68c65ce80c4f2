package notify

import "context"

// SensorStatusListener is told when sensors may have changed.
type SensorStatusListener interface {
	OnSensorStatusChanged(ctx context.Context)
}

// SensorFanout forwards sensor status changes to several listeners in order.
// The engine keeps a single sensor listener slot, the fanout fills it.
type SensorFanout []SensorStatusListener

// OnSensorStatusChanged notifies every listener.
func (f SensorFanout) OnSensorStatusChanged(ctx context.Context) {
	for _, listener := range f {
		if listener != nil {
			listener.OnSensorStatusChanged(ctx)
		}
	}
}
