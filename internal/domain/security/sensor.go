package security

import (
	"fmt"
	"slices"
	"strings"
)

// SensorType is the kind of physical sensor.
type SensorType string

// Supported sensor types.
const (
	SensorDoor   SensorType = "DOOR"
	SensorWindow SensorType = "WINDOW"
	SensorMotion SensorType = "MOTION"
)

// ParseSensorType converts a case-insensitive name into a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	t := SensorType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidSensor, s)
	}

	return t, nil
}

// Valid reports whether t is a supported sensor type.
func (t SensorType) Valid() bool {
	switch t {
	case SensorDoor, SensorWindow, SensorMotion:
		return true
	}

	return false
}

// Sensor is a registered door, window or motion sensor.
// Name is the identity key inside a registry.
type Sensor struct {
	// Name identifies the sensor, e.g. "Front door".
	Name string
	// Type is the kind of sensor.
	Type SensorType
	// Active is true while the sensor reports activity.
	Active bool
}

// NewSensor returns an inactive sensor.
func NewSensor(name string, sensorType SensorType) Sensor {
	return Sensor{
		Name: name,
		Type: sensorType,
	}
}

// Validate checks the sensor has a name and a known type.
func (s Sensor) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSensor)
	}

	if !s.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSensor, s.Type)
	}

	return nil
}

// SortSensors orders sensors by name, then by type, in place.
func SortSensors(sensors []Sensor) {
	slices.SortFunc(sensors, func(a, b Sensor) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}

		return strings.Compare(string(a.Type), string(b.Type))
	})
}

// AllInactive reports whether no sensor in the list is active.
func AllInactive(sensors []Sensor) bool {
	for _, s := range sensors {
		if s.Active {
			return false
		}
	}

	return true
}
