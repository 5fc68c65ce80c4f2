package security

import (
	"fmt"
	"strings"
)

// ArmingStatus describes whether the system is monitoring sensors and in what mode.
type ArmingStatus int

const (
	// ArmingDisarmed means sensors are ignored.
	ArmingDisarmed ArmingStatus = iota
	// ArmingArmedHome means people are home; the camera may raise the alarm.
	ArmingArmedHome
	// ArmingArmedAway means nobody is home.
	ArmingArmedAway
)

// AlarmStatus is the current escalation level of the alarm.
// Values are ordered by severity.
type AlarmStatus int

const (
	// AlarmNone means nothing is wrong.
	AlarmNone AlarmStatus = iota
	// AlarmPending means one sensor tripped and the system waits for confirmation.
	AlarmPending
	// AlarmTriggered means the alarm is sounding.
	AlarmTriggered
)

//nolint:gochecknoglobals // Lookup tables for text encoding.
var (
	armingNames = map[ArmingStatus]string{
		ArmingDisarmed:  "DISARMED",
		ArmingArmedHome: "ARMED_HOME",
		ArmingArmedAway: "ARMED_AWAY",
	}

	alarmNames = map[AlarmStatus]string{
		AlarmNone:      "NO_ALARM",
		AlarmPending:   "PENDING_ALARM",
		AlarmTriggered: "ALARM",
	}

	armingAliases = map[string]ArmingStatus{
		"disarmed":   ArmingDisarmed,
		"off":        ArmingDisarmed,
		"armed_home": ArmingArmedHome,
		"home":       ArmingArmedHome,
		"armed_away": ArmingArmedAway,
		"away":       ArmingArmedAway,
	}
)

// String returns the upper-case name of the arming status.
func (s ArmingStatus) String() string {
	if name, ok := armingNames[s]; ok {
		return name
	}

	return fmt.Sprintf("ArmingStatus(%d)", int(s))
}

// Valid reports whether s is one of the declared arming statuses.
func (s ArmingStatus) Valid() bool {
	_, ok := armingNames[s]

	return ok
}

// Armed reports whether the system is monitoring sensors.
func (s ArmingStatus) Armed() bool {
	return s == ArmingArmedHome || s == ArmingArmedAway
}

// MarshalText implements encoding.TextMarshaler.
func (s ArmingStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidArmingStatus, int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ArmingStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseArmingStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseArmingStatus converts a name like "ARMED_AWAY" or an alias like "away".
func ParseArmingStatus(s string) (ArmingStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")

	if status, ok := armingAliases[key]; ok {
		return status, nil
	}

	return ArmingDisarmed, fmt.Errorf("%w: %q", ErrInvalidArmingStatus, s)
}

// String returns the upper-case name of the alarm status.
func (s AlarmStatus) String() string {
	if name, ok := alarmNames[s]; ok {
		return name
	}

	return fmt.Sprintf("AlarmStatus(%d)", int(s))
}

// Valid reports whether s is one of the declared alarm statuses.
func (s AlarmStatus) Valid() bool {
	_, ok := alarmNames[s]

	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (s AlarmStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAlarmStatus, int(s))
	}

	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *AlarmStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAlarmStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// ParseAlarmStatus converts a name like "PENDING_ALARM" into an AlarmStatus.
func ParseAlarmStatus(s string) (AlarmStatus, error) {
	key := strings.ToUpper(strings.TrimSpace(s))

	for status, name := range alarmNames {
		if name == key {
			return status, nil
		}
	}

	return AlarmNone, fmt.Errorf("%w: %q", ErrInvalidAlarmStatus, s)
}

// Escalate applies the sensor activation rule:
// NO_ALARM becomes PENDING_ALARM, PENDING_ALARM becomes ALARM, ALARM stays.
func (s AlarmStatus) Escalate() AlarmStatus {
	switch s {
	case AlarmNone:
		return AlarmPending
	case AlarmPending:
		return AlarmTriggered
	case AlarmTriggered:
		return AlarmTriggered
	}

	return s
}

// Deescalate applies the sensor deactivation rule:
// PENDING_ALARM becomes NO_ALARM and ALARM becomes PENDING_ALARM.
// NO_ALARM has nowhere to go and yields an *UnexpectedAlarmStatusError.
func (s AlarmStatus) Deescalate() (AlarmStatus, error) {
	switch s {
	case AlarmPending:
		return AlarmNone, nil
	case AlarmTriggered:
		return AlarmPending, nil
	case AlarmNone:
	}

	return s, &UnexpectedAlarmStatusError{Status: s}
}
