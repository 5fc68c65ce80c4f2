package security

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// StatusListener observes alarm status changes and cat detection results.
// Implementations must be comparable (pointer types are) to be kept in a set;
// other listeners are rejected.
//
// Notifications arrive in the order the changes were stored. While another
// call is delivering, a call may return before its own notifications are out.
type StatusListener interface {
	OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus)
	OnCatDetected(ctx context.Context, detected bool)
}

// SensorStatusListener is told when sensors may have changed in bulk,
// i.e. after every arming status change.
type SensorStatusListener interface {
	OnSensorStatusChanged(ctx context.Context)
}

// listenerSet holds the status listener set and the single sensor listener slot.
type listenerSet struct {
	// status is the set of registered status listeners.
	status map[StatusListener]struct{}
	// sensor is the single sensor status listener, may be nil.
	sensor SensorStatusListener
	// mu protects the fields above.
	mu sync.RWMutex

	// queue holds events not yet delivered, in the order they were stored.
	queue []event
	// draining is true while some goroutine delivers the queue.
	draining bool
	// queueMu protects queue and draining.
	queueMu sync.Mutex
}

// ErrUncomparableListener is returned for listeners that cannot be kept in the set.
var ErrUncomparableListener = errors.New("status listener type is not comparable")

// isComparable reports whether listener can be used as a map key.
func isComparable(listener StatusListener) bool {
	return reflect.TypeOf(listener).Comparable()
}

func (l *listenerSet) add(listener StatusListener) error {
	if listener == nil {
		return nil
	}

	if !isComparable(listener) {
		return fmt.Errorf("%w: %T", ErrUncomparableListener, listener)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.status == nil {
		l.status = make(map[StatusListener]struct{})
	}

	l.status[listener] = struct{}{}

	return nil
}

func (l *listenerSet) remove(listener StatusListener) {
	if listener == nil || !isComparable(listener) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.status, listener)
}

func (l *listenerSet) setSensor(listener SensorStatusListener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sensor = listener
}

// snapshot copies the registered listeners so delivery runs without the lock.
func (l *listenerSet) snapshot() ([]StatusListener, SensorStatusListener) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]StatusListener, 0, len(l.status))
	for listener := range l.status {
		result = append(result, listener)
	}

	return result, l.sensor
}

// eventKind tells which callback an event maps to.
type eventKind int

const (
	eventAlarmStatus eventKind = iota
	eventCatDetected
	eventSensorStatus
)

// event is a notification recorded while the engine lock is held.
type event struct {
	// ctx is the context of the call that produced the event.
	ctx   context.Context //nolint:containedctx // Delivered later, possibly by another goroutine.
	kind  eventKind
	alarm domain.AlarmStatus
	cat   bool
}

// outbox collects events in the order they happened.
type outbox []event

func (o *outbox) alarmStatusChanged(status domain.AlarmStatus) {
	*o = append(*o, event{kind: eventAlarmStatus, alarm: status})
}

func (o *outbox) catDetected(detected bool) {
	*o = append(*o, event{kind: eventCatDetected, cat: detected})
}

func (o *outbox) sensorStatusChanged() {
	*o = append(*o, event{kind: eventSensorStatus})
}

// enqueue appends events to the delivery queue. It must be called while the
// engine lock is held so the queue follows the order of the stored changes.
func (l *listenerSet) enqueue(ctx context.Context, events outbox) {
	if len(events) == 0 {
		return
	}

	l.queueMu.Lock()
	defer l.queueMu.Unlock()

	for _, e := range events {
		e.ctx = ctx
		l.queue = append(l.queue, e)
	}
}

// drain delivers queued events until the queue is empty. When another
// goroutine, or a listener further up the stack, is already delivering,
// drain returns at once and that goroutine delivers the new events too.
func (l *listenerSet) drain() {
	l.queueMu.Lock()
	if l.draining {
		l.queueMu.Unlock()

		return
	}

	l.draining = true

	for len(l.queue) > 0 {
		batch := l.queue
		l.queue = nil
		l.queueMu.Unlock()

		l.deliver(batch)

		l.queueMu.Lock()
	}

	l.draining = false
	l.queueMu.Unlock()
}

// deliver hands the events to the current listeners.
func (l *listenerSet) deliver(events []event) {
	statusListeners, sensorListener := l.snapshot()

	for _, e := range events {
		ctx := e.ctx

		switch e.kind {
		case eventAlarmStatus:
			for _, listener := range statusListeners {
				safeNotify(ctx, "alarm_status_changed", func() {
					listener.OnAlarmStatusChanged(ctx, e.alarm)
				})
			}
		case eventCatDetected:
			for _, listener := range statusListeners {
				safeNotify(ctx, "cat_detected", func() {
					listener.OnCatDetected(ctx, e.cat)
				})
			}
		case eventSensorStatus:
			if sensorListener != nil {
				safeNotify(ctx, "sensor_status_changed", func() {
					sensorListener.OnSensorStatusChanged(ctx)
				})
			}
		}
	}
}

// safeNotify runs fn and logs a panic instead of propagating it.
func safeNotify(ctx context.Context, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorKV(ctx, "Listener panicked", "event", name, "panic", r)
		}
	}()

	fn()
}
