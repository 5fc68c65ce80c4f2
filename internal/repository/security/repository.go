package security

import (
	"context"
	"errors"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Repository defines persistence operations for the panel state.
// Implementations must be safe for concurrent use.
type Repository interface {
	ArmingStatus(ctx context.Context) (domain.ArmingStatus, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error
	// Sensors returns every registered sensor ordered by name.
	Sensors(ctx context.Context) ([]domain.Sensor, error)
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, sensor domain.Sensor) error
	// UpdateSensor stores the sensor, inserting it when it is not registered yet.
	UpdateSensor(ctx context.Context, sensor domain.Sensor) error
}

// ErrSensorNotFound is returned when removing a sensor that is not registered.
var ErrSensorNotFound = errors.New("sensor not found")
