package security

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/oshokin/catpoint/internal/classifier"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

// ConfidenceThreshold is the minimum classifier confidence, in percent,
// for an image to count as showing a cat.
const ConfidenceThreshold float32 = 50.0

// Service is the alarm decision engine.
type Service struct {
	// repo stores arming status, alarm status and sensors.
	repo repo.Repository
	// classifier looks for cats in camera images.
	classifier classifier.Classifier
	// catDetected is the last classifier result.
	catDetected atomic.Bool
	// listeners receive notifications after every operation.
	listeners listenerSet
	// mu serialises decisions so each one sees a consistent state.
	mu sync.Mutex
}

// NewService creates an engine backed by the provided repository and classifier.
func NewService(repository repo.Repository, imageClassifier classifier.Classifier) *Service {
	return &Service{
		repo:       repository,
		classifier: imageClassifier,
	}
}

// AddStatusListener registers a status listener. Adding it twice has no effect.
// Listeners whose type is not comparable are rejected with an error.
func (s *Service) AddStatusListener(listener StatusListener) error {
	return s.listeners.add(listener)
}

// RemoveStatusListener unregisters a status listener.
func (s *Service) RemoveStatusListener(listener StatusListener) {
	s.listeners.remove(listener)
}

// StatusListeners returns the registered status listeners in no particular order.
func (s *Service) StatusListeners() []StatusListener {
	listeners, _ := s.listeners.snapshot()

	return listeners
}

// SetSensorStatusListener replaces the sensor status listener. Nil clears it.
func (s *Service) SetSensorStatusListener(listener SensorStatusListener) {
	s.listeners.setSensor(listener)
}

// SetArmingStatus arms or disarms the system.
//
// Disarming clears the alarm. Arming resets every sensor to inactive, and
// arming at home while a cat is on camera raises the alarm straight away.
// The sensor status listener is notified once the new status is stored.
func (s *Service) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidArmingStatus, int(status))
	}

	var events outbox

	s.mu.Lock()
	err := s.setArmingStatus(ctx, status, &events)
	s.listeners.enqueue(ctx, events)
	s.mu.Unlock()

	s.listeners.drain()

	return err
}

func (s *Service) setArmingStatus(ctx context.Context, status domain.ArmingStatus, events *outbox) error {
	switch status {
	case domain.ArmingDisarmed:
		if err := s.setAlarmStatus(ctx, domain.AlarmNone, events); err != nil {
			return err
		}
	case domain.ArmingArmedHome:
		if s.catDetected.Load() {
			if err := s.setAlarmStatus(ctx, domain.AlarmTriggered, events); err != nil {
				return err
			}
		}

		if err := s.resetSensors(ctx); err != nil {
			return err
		}
	case domain.ArmingArmedAway:
		if err := s.resetSensors(ctx); err != nil {
			return err
		}
	}

	if err := s.repo.SetArmingStatus(ctx, status); err != nil {
		return fmt.Errorf("persist arming status: %w", err)
	}

	logger.InfoKV(ctx, "Arming status changed", "arming_status", status.String())
	events.sensorStatusChanged()

	return nil
}

// resetSensors marks every registered sensor inactive without touching the alarm.
func (s *Service) resetSensors(ctx context.Context) error {
	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}

	for _, sensor := range sensors {
		sensor.Active = false

		if err = s.repo.UpdateSensor(ctx, sensor); err != nil {
			return fmt.Errorf("reset sensor %q: %w", sensor.Name, err)
		}
	}

	return nil
}

// ChangeSensorActivationStatus records that a sensor became active or
// inactive and moves the alarm accordingly. It returns the sensor as stored.
//
// While disarmed the call does nothing at all, not even storing the flag.
// Unknown sensors are registered on the fly.
func (s *Service) ChangeSensorActivationStatus(
	ctx context.Context,
	sensor domain.Sensor,
	active bool,
) (domain.Sensor, error) {
	if err := sensor.Validate(); err != nil {
		return sensor, err
	}

	var events outbox

	s.mu.Lock()
	result, err := s.changeSensorActivationStatus(ctx, sensor, active, &events)
	s.listeners.enqueue(ctx, events)
	s.mu.Unlock()

	s.listeners.drain()

	return result, err
}

func (s *Service) changeSensorActivationStatus(
	ctx context.Context,
	sensor domain.Sensor,
	active bool,
	events *outbox,
) (domain.Sensor, error) {
	arming, err := s.repo.ArmingStatus(ctx)
	if err != nil {
		return sensor, fmt.Errorf("read arming status: %w", err)
	}

	if arming == domain.ArmingDisarmed {
		return sensor, nil
	}

	alarm, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return sensor, fmt.Errorf("read alarm status: %w", err)
	}

	switch {
	case alarm == domain.AlarmTriggered:
		// At the ceiling only an away panel reacts, and it always steps down.
		if arming == domain.ArmingArmedAway {
			err = s.handleSensorDeactivated(ctx, alarm, events)
		}
	case active:
		err = s.handleSensorActivated(ctx, alarm, events)
	default:
		err = s.handleSensorDeactivated(ctx, alarm, events)
	}

	if err != nil {
		return sensor, err
	}

	sensor.Active = active

	if err = s.repo.UpdateSensor(ctx, sensor); err != nil {
		return sensor, fmt.Errorf("persist sensor %q: %w", sensor.Name, err)
	}

	logger.DebugKV(ctx, "Sensor updated", "sensor", sensor.Name, "active", sensor.Active)

	return sensor, nil
}

// handleSensorActivated applies the activation rule to the current alarm status.
func (s *Service) handleSensorActivated(ctx context.Context, current domain.AlarmStatus, events *outbox) error {
	next := current.Escalate()
	if next == current {
		return nil
	}

	return s.setAlarmStatus(ctx, next, events)
}

// handleSensorDeactivated applies the deactivation rule to the current alarm status.
func (s *Service) handleSensorDeactivated(ctx context.Context, current domain.AlarmStatus, events *outbox) error {
	next, err := current.Deescalate()
	if err != nil {
		logger.ErrorKV(ctx, "Sensor deactivated in unexpected alarm state", "alarm_status", current.String())

		return err
	}

	return s.setAlarmStatus(ctx, next, events)
}

// ProcessImage classifies a camera image and updates the alarm.
//
// A cat while armed at home raises the alarm; no cat while every sensor is
// inactive clears it. Status listeners always receive the result.
func (s *Service) ProcessImage(ctx context.Context, img image.Image) error {
	isCat, err := s.classifier.ImageContainsCat(ctx, img, ConfidenceThreshold)
	if err != nil {
		return fmt.Errorf("classify image: %w", err)
	}

	var events outbox

	s.mu.Lock()
	err = s.handleCatDetection(ctx, isCat, &events)
	s.listeners.enqueue(ctx, events)
	s.mu.Unlock()

	s.listeners.drain()

	return err
}

func (s *Service) handleCatDetection(ctx context.Context, isCat bool, events *outbox) error {
	s.catDetected.Store(isCat)
	logger.InfoKV(ctx, "Camera image classified", "cat_detected", isCat)

	err := s.applyCatDetection(ctx, isCat, events)

	events.catDetected(isCat)

	return err
}

func (s *Service) applyCatDetection(ctx context.Context, isCat bool, events *outbox) error {
	if isCat {
		arming, err := s.repo.ArmingStatus(ctx)
		if err != nil {
			return fmt.Errorf("read arming status: %w", err)
		}

		if arming == domain.ArmingArmedHome {
			return s.setAlarmStatus(ctx, domain.AlarmTriggered, events)
		}

		return nil
	}

	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}

	if domain.AllInactive(sensors) {
		return s.setAlarmStatus(ctx, domain.AlarmNone, events)
	}

	return nil
}

// SetAlarmStatus stores the alarm status and notifies every status listener.
func (s *Service) SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAlarmStatus, int(status))
	}

	var events outbox

	s.mu.Lock()
	err := s.setAlarmStatus(ctx, status, &events)
	s.listeners.enqueue(ctx, events)
	s.mu.Unlock()

	s.listeners.drain()

	return err
}

// setAlarmStatus is the only place the alarm status is written.
func (s *Service) setAlarmStatus(ctx context.Context, status domain.AlarmStatus, events *outbox) error {
	if err := s.repo.SetAlarmStatus(ctx, status); err != nil {
		return fmt.Errorf("persist alarm status: %w", err)
	}

	logger.InfoKV(ctx, "Alarm status changed", "alarm_status", status.String())
	events.alarmStatusChanged(status)

	return nil
}

// CatDetected returns the last classifier result.
func (s *Service) CatDetected() bool {
	return s.catDetected.Load()
}

// AlarmStatus returns the stored alarm status.
func (s *Service) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	return s.repo.AlarmStatus(ctx)
}

// ArmingStatus returns the stored arming status.
func (s *Service) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	return s.repo.ArmingStatus(ctx)
}

// Sensors returns the registered sensors ordered by name.
func (s *Service) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	return s.repo.Sensors(ctx)
}

// AddSensor registers a new sensor.
func (s *Service) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.AddSensor(ctx, sensor); err != nil {
		return fmt.Errorf("add sensor %q: %w", sensor.Name, err)
	}

	logger.InfoKV(ctx, "Sensor added", "sensor", sensor.Name, "type", string(sensor.Type))

	return nil
}

// RemoveSensor unregisters a sensor.
func (s *Service) RemoveSensor(ctx context.Context, sensor domain.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.RemoveSensor(ctx, sensor); err != nil {
		return fmt.Errorf("remove sensor %q: %w", sensor.Name, err)
	}

	logger.InfoKV(ctx, "Sensor removed", "sensor", sensor.Name)

	return nil
}

// Snapshot returns a consistent view of the whole panel state.
func (s *Service) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	arming, err := s.repo.ArmingStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("read arming status: %w", err)
	}

	alarm, err := s.repo.AlarmStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("read alarm status: %w", err)
	}

	sensors, err := s.repo.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sensors: %w", err)
	}

	return &domain.Snapshot{
		ArmingStatus: arming,
		AlarmStatus:  alarm,
		CatDetected:  s.catDetected.Load(),
		Sensors:      sensors,
	}, nil
}
