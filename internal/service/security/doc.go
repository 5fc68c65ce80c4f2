// Package security implements the alarm decision engine.
//
// Service maps arming status, alarm status, sensor activity and cat
// detection results to the next alarm status, persists every change through
// a Repository and notifies registered listeners. It is safe for concurrent
// use; listeners are called on the caller's goroutine after the engine lock
// has been released.
package security
