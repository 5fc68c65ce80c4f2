package security

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArmingStatus is returned for unknown arming status values.
	ErrInvalidArmingStatus = errors.New("invalid arming status")
	// ErrInvalidAlarmStatus is returned for unknown alarm status values.
	ErrInvalidAlarmStatus = errors.New("invalid alarm status")
	// ErrInvalidSensor is returned when a sensor has no name or an unknown type.
	ErrInvalidSensor = errors.New("invalid sensor")
	// ErrUnexpectedAlarmStatus marks a transition rule applied to a status it cannot handle.
	ErrUnexpectedAlarmStatus = errors.New("unexpected alarm state")
)

// UnexpectedAlarmStatusError carries the status that broke a transition invariant.
type UnexpectedAlarmStatusError struct {
	// Status is the alarm status observed when the rule was applied.
	Status AlarmStatus
}

// Error implements the error interface.
func (e *UnexpectedAlarmStatusError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnexpectedAlarmStatus, e.Status)
}

// Unwrap allows errors.Is(err, ErrUnexpectedAlarmStatus).
func (e *UnexpectedAlarmStatusError) Unwrap() error {
	return ErrUnexpectedAlarmStatus
}
