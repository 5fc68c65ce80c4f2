package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// countingSensorListener counts sensor notifications.
type countingSensorListener struct {
	calls int
}

func (l *countingSensorListener) OnSensorStatusChanged(context.Context) {
	l.calls++
}

// TestSensorFanout_NotifiesEveryListener checks no listener is dropped and nil entries are skipped.
func TestSensorFanout_NotifiesEveryListener(t *testing.T) {
	t.Parallel()

	first, second := new(countingSensorListener), new(countingSensorListener)
	fanout := SensorFanout{first, nil, second}

	fanout.OnSensorStatusChanged(context.Background())
	fanout.OnSensorStatusChanged(context.Background())

	require.Equal(t, 2, first.calls)
	require.Equal(t, 2, second.calls)
}
