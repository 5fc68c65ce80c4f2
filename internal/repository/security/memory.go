package security

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// MemoryRepository keeps the panel state in process memory.
// The zero value is ready to use and starts DISARMED with NO_ALARM.
type MemoryRepository struct {
	// arming is the current arming status.
	arming domain.ArmingStatus
	// alarm is the current alarm status.
	alarm domain.AlarmStatus
	// sensors maps sensor name to sensor.
	sensors map[string]domain.Sensor
	// mu protects all fields above.
	mu sync.RWMutex
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return new(MemoryRepository)
}

// ArmingStatus returns the current arming status.
func (r *MemoryRepository) ArmingStatus(context.Context) (domain.ArmingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.arming, nil
}

// SetArmingStatus stores the arming status.
func (r *MemoryRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.arming = status

	return nil
}

// AlarmStatus returns the current alarm status.
func (r *MemoryRepository) AlarmStatus(context.Context) (domain.AlarmStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.alarm, nil
}

// SetAlarmStatus stores the alarm status.
func (r *MemoryRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alarm = status

	return nil
}

// Sensors returns a sorted copy of the registered sensors.
func (r *MemoryRepository) Sensors(context.Context) ([]domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Sensor, 0, len(r.sensors))
	for _, s := range r.sensors {
		result = append(result, s)
	}

	domain.SortSensors(result)

	return result, nil
}

// AddSensor registers a sensor, replacing any sensor with the same name.
func (r *MemoryRepository) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	return r.UpdateSensor(ctx, sensor)
}

// RemoveSensor unregisters the sensor with the same name.
func (r *MemoryRepository) RemoveSensor(_ context.Context, sensor domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[sensor.Name]; !ok {
		return fmt.Errorf("%w: %q", ErrSensorNotFound, sensor.Name)
	}

	delete(r.sensors, sensor.Name)

	return nil
}

// UpdateSensor stores the sensor.
func (r *MemoryRepository) UpdateSensor(_ context.Context, sensor domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sensors == nil {
		r.sensors = make(map[string]domain.Sensor)
	}

	r.sensors[sensor.Name] = sensor

	return nil
}
