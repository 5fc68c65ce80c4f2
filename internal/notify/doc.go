// Package notify contains the listeners the server attaches to the alarm
// engine: structured logging, Prometheus metrics and MQTT fan-out.
package notify
