package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAlarmStatusEscalate verifies the activation rule for every alarm status.
func TestAlarmStatusEscalate(t *testing.T) {
	t.Parallel()

	require.Equal(t, AlarmPending, AlarmNone.Escalate())
	require.Equal(t, AlarmTriggered, AlarmPending.Escalate())
	require.Equal(t, AlarmTriggered, AlarmTriggered.Escalate())
}

// TestAlarmStatusDeescalate verifies the deactivation rule and its NO_ALARM invariant.
func TestAlarmStatusDeescalate(t *testing.T) {
	t.Parallel()

	next, err := AlarmTriggered.Deescalate()
	require.NoError(t, err)
	require.Equal(t, AlarmPending, next)

	next, err = AlarmPending.Deescalate()
	require.NoError(t, err)
	require.Equal(t, AlarmNone, next)

	_, err = AlarmNone.Deescalate()
	require.ErrorIs(t, err, ErrUnexpectedAlarmStatus)

	var unexpected *UnexpectedAlarmStatusError

	require.ErrorAs(t, err, &unexpected)
	require.Equal(t, AlarmNone, unexpected.Status)
	require.Contains(t, err.Error(), "NO_ALARM")
}

// TestAlarmStatusOrdering checks statuses compare by severity.
func TestAlarmStatusOrdering(t *testing.T) {
	t.Parallel()

	require.Less(t, AlarmNone, AlarmPending)
	require.Less(t, AlarmPending, AlarmTriggered)
}

// TestParseArmingStatus covers canonical names, aliases and unknown input.
func TestParseArmingStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]ArmingStatus{
		"DISARMED":   ArmingDisarmed,
		"armed_home": ArmingArmedHome,
		"Armed-Away": ArmingArmedAway,
		"home":       ArmingArmedHome,
		" away ":     ArmingArmedAway,
	}
	for in, want := range cases {
		got, err := ParseArmingStatus(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseArmingStatus("armed_garage")
	require.ErrorIs(t, err, ErrInvalidArmingStatus)
}

// TestStatusText round-trips statuses through their text encoding.
func TestStatusText(t *testing.T) {
	t.Parallel()

	text, err := ArmingArmedAway.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "ARMED_AWAY", string(text))

	var arming ArmingStatus

	require.NoError(t, arming.UnmarshalText(text))
	require.Equal(t, ArmingArmedAway, arming)

	var alarm AlarmStatus

	require.NoError(t, alarm.UnmarshalText([]byte("pending_alarm")))
	require.Equal(t, AlarmPending, alarm)

	_, err = AlarmStatus(42).MarshalText()
	require.ErrorIs(t, err, ErrInvalidAlarmStatus)
	require.Equal(t, "AlarmStatus(42)", AlarmStatus(42).String())
	require.False(t, ArmingStatus(-1).Valid())
}
