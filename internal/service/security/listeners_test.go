package security

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// recordingListener remembers every notification it receives.
type recordingListener struct {
	mu      sync.Mutex
	alarms  []domain.AlarmStatus
	cats    []bool
	sensors int
}

func newRecordingListener() *recordingListener {
	return new(recordingListener)
}

func (l *recordingListener) OnAlarmStatusChanged(_ context.Context, status domain.AlarmStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.alarms = append(l.alarms, status)
}

func (l *recordingListener) OnCatDetected(_ context.Context, detected bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cats = append(l.cats, detected)
}

func (l *recordingListener) OnSensorStatusChanged(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sensors++
}

func (l *recordingListener) alarmStatuses() []domain.AlarmStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]domain.AlarmStatus(nil), l.alarms...)
}

func (l *recordingListener) catResults() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]bool(nil), l.cats...)
}

func (l *recordingListener) sensorCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sensors
}

// panickingListener blows up on every callback.
type panickingListener struct{}

func (panickingListener) OnAlarmStatusChanged(context.Context, domain.AlarmStatus) { panic("alarm") }
func (panickingListener) OnCatDetected(context.Context, bool)                     { panic("cat") }
func (panickingListener) OnSensorStatusChanged(context.Context)                   { panic("sensor") }

// funcListener forwards alarm changes to a callback. Its func field makes it uncomparable.
type funcListener struct {
	onAlarm func(domain.AlarmStatus)
}

func (l funcListener) OnAlarmStatusChanged(_ context.Context, status domain.AlarmStatus) {
	l.onAlarm(status)
}

func (funcListener) OnCatDetected(context.Context, bool) {}

// gatedListener blocks its first alarm notification until gate is closed.
type gatedListener struct {
	*recordingListener
	// entered is closed once the first notification arrives.
	entered chan struct{}
	// gate releases the first notification.
	gate chan struct{}
	once sync.Once
}

func (l *gatedListener) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	first := false
	l.once.Do(func() { first = true })

	if first {
		close(l.entered)
		<-l.gate
	}

	l.recordingListener.OnAlarmStatusChanged(ctx, status)
}

// mutatingListener clears the alarm from inside its callback the first time it sounds.
type mutatingListener struct {
	*recordingListener
	service *Service
	once    sync.Once
}

func (l *mutatingListener) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	l.recordingListener.OnAlarmStatusChanged(ctx, status)

	if status == domain.AlarmTriggered {
		l.once.Do(func() {
			_ = l.service.SetAlarmStatus(ctx, domain.AlarmNone)
		})
	}
}

// snapshotListener reads the engine state from inside a callback.
type snapshotListener struct {
	service *Service
	seen    []*domain.Snapshot
}

func (l *snapshotListener) OnAlarmStatusChanged(ctx context.Context, _ domain.AlarmStatus) {
	snapshot, err := l.service.Snapshot(ctx)
	if err == nil {
		l.seen = append(l.seen, snapshot)
	}
}

func (*snapshotListener) OnCatDetected(context.Context, bool) {}

// TestListeners_AddRemoveRestoresEmpty checks the listener set round trip.
func TestListeners_AddRemoveRestoresEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingDisarmed, domain.AlarmNone)
	listener := newRecordingListener()

	require.Empty(t, f.service.StatusListeners())

	require.NoError(t, f.service.AddStatusListener(listener))
	require.NoError(t, f.service.AddStatusListener(listener))
	require.Len(t, f.service.StatusListeners(), 1)

	f.service.RemoveStatusListener(listener)
	require.Empty(t, f.service.StatusListeners())

	f.service.RemoveStatusListener(listener)
	require.NoError(t, f.service.AddStatusListener(nil))
	require.Empty(t, f.service.StatusListeners())

	require.NoError(t, f.service.SetAlarmStatus(f.ctx, domain.AlarmPending))
	require.Empty(t, listener.alarmStatuses())
}

// TestListeners_EventOrder checks notifications follow the order of the decisions.
func TestListeners_EventOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingDisarmed, domain.AlarmNone)
	listener := newRecordingListener()
	require.NoError(t, f.service.AddStatusListener(listener))
	f.service.SetSensorStatusListener(listener)

	f.classifier.isCat = true
	require.NoError(t, f.service.ProcessImage(f.ctx, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	require.NoError(t, f.service.SetArmingStatus(f.ctx, domain.ArmingArmedHome))
	require.NoError(t, f.service.SetArmingStatus(f.ctx, domain.ArmingDisarmed))

	require.Equal(t, []bool{true}, listener.catResults())
	require.Equal(t, []domain.AlarmStatus{domain.AlarmTriggered, domain.AlarmNone}, listener.alarmStatuses())
	require.Equal(t, 2, listener.sensorCalls())
}

// TestListeners_PanicIsolated checks a panicking listener neither breaks the engine nor starves others.
func TestListeners_PanicIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingArmedHome, domain.AlarmNone, door("Front", false))
	healthy := newRecordingListener()
	require.NoError(t, f.service.AddStatusListener(panickingListener{}))
	require.NoError(t, f.service.AddStatusListener(healthy))
	f.service.SetSensorStatusListener(panickingListener{})

	_, err := f.service.ChangeSensorActivationStatus(f.ctx, door("Front", false), true)
	require.NoError(t, err)
	require.NoError(t, f.service.SetArmingStatus(f.ctx, domain.ArmingArmedAway))
	require.NoError(t, f.service.ProcessImage(f.ctx, image.NewRGBA(image.Rect(0, 0, 1, 1))))

	require.Equal(t, []domain.AlarmStatus{domain.AlarmPending, domain.AlarmNone}, healthy.alarmStatuses())
	require.Equal(t, []bool{false}, healthy.catResults())
	require.Equal(t, domain.AlarmNone, f.alarm(t))
}

// TestListeners_ReentrantCalls checks a listener may query the engine without deadlocking.
func TestListeners_ReentrantCalls(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingArmedHome, domain.AlarmNone, door("Front", false))
	listener := &snapshotListener{service: f.service}
	require.NoError(t, f.service.AddStatusListener(listener))

	_, err := f.service.ChangeSensorActivationStatus(f.ctx, door("Front", false), true)
	require.NoError(t, err)

	require.Len(t, listener.seen, 1)
	require.Equal(t, domain.AlarmPending, listener.seen[0].AlarmStatus)
	require.True(t, listener.seen[0].Sensors[0].Active)
}

// TestListeners_RejectsUncomparable checks listeners that cannot be hashed are refused instead of panicking.
func TestListeners_RejectsUncomparable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingDisarmed, domain.AlarmNone)
	listener := funcListener{onAlarm: func(domain.AlarmStatus) {}}

	require.NotPanics(t, func() {
		err := f.service.AddStatusListener(listener)
		require.ErrorIs(t, err, ErrUncomparableListener)
	})
	require.NotPanics(t, func() {
		f.service.RemoveStatusListener(listener)
	})
	require.Empty(t, f.service.StatusListeners())

	// Wrapped in a pointer the same listener is accepted.
	require.NoError(t, f.service.AddStatusListener(&listener))
	require.Len(t, f.service.StatusListeners(), 1)
}

// TestListeners_DeliveryFollowsStoreOrder checks a slow listener cannot see changes out of order.
func TestListeners_DeliveryFollowsStoreOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingArmedAway, domain.AlarmNone)
	listener := &gatedListener{
		recordingListener: newRecordingListener(),
		entered:           make(chan struct{}),
		gate:              make(chan struct{}),
	}
	require.NoError(t, f.service.AddStatusListener(listener))

	first := make(chan error, 1)

	go func() {
		first <- f.service.SetAlarmStatus(f.ctx, domain.AlarmTriggered)
	}()

	select {
	case <-listener.entered:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "listener was not called")
	}

	// The second change is stored while the first notification is still in flight.
	second := make(chan error, 1)

	go func() {
		second <- f.service.SetAlarmStatus(f.ctx, domain.AlarmNone)
	}()

	require.Eventually(t, func() bool {
		return f.alarm(t) == domain.AlarmNone
	}, 5*time.Second, 5*time.Millisecond)

	close(listener.gate)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	require.Equal(t, domain.AlarmNone, f.alarm(t))
	require.Eventually(t, func() bool {
		statuses := listener.alarmStatuses()

		return len(statuses) == 2
	}, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, []domain.AlarmStatus{domain.AlarmTriggered, domain.AlarmNone}, listener.alarmStatuses())
}

// TestListeners_ReentrantChange checks a listener may change the engine state from its callback.
func TestListeners_ReentrantChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.ArmingArmedHome, domain.AlarmNone)
	listener := &mutatingListener{recordingListener: newRecordingListener(), service: f.service}
	require.NoError(t, f.service.AddStatusListener(listener))

	require.NoError(t, f.service.SetAlarmStatus(f.ctx, domain.AlarmTriggered))

	require.Equal(t, domain.AlarmNone, f.alarm(t))
	require.Equal(t, []domain.AlarmStatus{domain.AlarmTriggered, domain.AlarmNone}, listener.alarmStatuses())
}
