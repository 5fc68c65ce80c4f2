package security

import "slices"

// Actor identifies who issued a command to the panel.
type Actor struct {
	// Hostname is the machine name where the command was issued.
	Hostname string
	// Username is the system user who issued the command.
	Username string
}

// Clone returns a copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// Snapshot is the full panel state at one point in time.
type Snapshot struct {
	// ArmingStatus is the current arming mode.
	ArmingStatus ArmingStatus
	// AlarmStatus is the current escalation level.
	AlarmStatus AlarmStatus
	// CatDetected is the last classifier result.
	CatDetected bool
	// Sensors lists every registered sensor ordered by name.
	Sensors []Sensor
}

// Clone returns a copy of the snapshot that shares no memory with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	return &Snapshot{
		ArmingStatus: s.ArmingStatus,
		AlarmStatus:  s.AlarmStatus,
		CatDetected:  s.CatDetected,
		Sensors:      slices.Clone(s.Sensors),
	}
}

// Sensor finds a sensor by name.
func (s *Snapshot) Sensor(name string) (Sensor, bool) {
	for _, sensor := range s.Sensors {
		if sensor.Name == name {
			return sensor, true
		}
	}

	return Sensor{}, false
}
