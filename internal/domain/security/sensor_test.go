package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSensorValidate rejects empty names and unknown types.
func TestSensorValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewSensor("Front door", SensorDoor).Validate())
	require.ErrorIs(t, NewSensor(" ", SensorDoor).Validate(), ErrInvalidSensor)
	require.ErrorIs(t, NewSensor("Garage", "GARAGE").Validate(), ErrInvalidSensor)
}

// TestParseSensorType accepts any case and rejects unknown names.
func TestParseSensorType(t *testing.T) {
	t.Parallel()

	got, err := ParseSensorType("motion")
	require.NoError(t, err)
	require.Equal(t, SensorMotion, got)

	_, err = ParseSensorType("smoke")
	require.ErrorIs(t, err, ErrInvalidSensor)
}

// TestSortSensors orders sensors by name for deterministic iteration.
func TestSortSensors(t *testing.T) {
	t.Parallel()

	sensors := []Sensor{
		NewSensor("Window", SensorWindow),
		NewSensor("Back door", SensorDoor),
		NewSensor("Hall", SensorMotion),
	}

	SortSensors(sensors)

	require.Equal(t, "Back door", sensors[0].Name)
	require.Equal(t, "Hall", sensors[1].Name)
	require.Equal(t, "Window", sensors[2].Name)
}

// TestAllInactive reports true only when no sensor is active.
func TestAllInactive(t *testing.T) {
	t.Parallel()

	sensors := []Sensor{NewSensor("a", SensorDoor), NewSensor("b", SensorWindow)}
	require.True(t, AllInactive(sensors))
	require.True(t, AllInactive(nil))

	sensors[1].Active = true
	require.False(t, AllInactive(sensors))
}

// TestSnapshotClone verifies Clone copies the sensor slice and handles nil safely.
func TestSnapshotClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Snapshot)(nil).Clone())

	s := &Snapshot{
		ArmingStatus: ArmingArmedHome,
		AlarmStatus:  AlarmPending,
		CatDetected:  true,
		Sensors:      []Sensor{NewSensor("Front door", SensorDoor)},
	}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Sensors[0].Active = true
	require.False(t, s.Sensors[0].Active)

	found, ok := s.Sensor("Front door")
	require.True(t, ok)
	require.Equal(t, SensorDoor, found.Type)

	_, ok = s.Sensor("Back door")
	require.False(t, ok)
}

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{
		Hostname: "panel-01",
		Username: "operator",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}
