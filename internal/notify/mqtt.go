package notify

import (
	"context"
	"encoding/json"
	"path"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// Publisher sends a payload to a broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, retained bool, payload []byte) error
}

// SensorLister returns the registered sensors.
type SensorLister interface {
	Sensors(ctx context.Context) ([]domain.Sensor, error)
}

// Topic suffixes under the configured prefix.
const (
	TopicAlarm   = "alarm"
	TopicCat     = "cat"
	TopicSensors = "sensors"
)

// AlarmMessage is published on the alarm topic.
type AlarmMessage struct {
	Status string `json:"status"`
}

// CatMessage is published on the cat topic.
type CatMessage struct {
	Detected bool `json:"detected"`
}

// SensorMessage is one entry of the sensors topic payload.
type SensorMessage struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// MQTTPublisher mirrors engine notifications to retained MQTT topics.
// Publish failures are logged and never reach the engine.
//
// The engine only reports sensor changes in bulk, after arming status
// changes. The sensors topic therefore lags single activations made over
// gRPC until the next arming change; MQTT sensor commands refresh it
// through OnSensorStatusChanged.
type MQTTPublisher struct {
	// publisher sends the messages.
	publisher Publisher
	// sensors is read after every sensor status change.
	sensors SensorLister
	// prefix is the root of every topic.
	prefix string
}

// NewMQTTPublisher creates a publisher writing under prefix.
func NewMQTTPublisher(publisher Publisher, sensors SensorLister, prefix string) *MQTTPublisher {
	return &MQTTPublisher{
		publisher: publisher,
		sensors:   sensors,
		prefix:    prefix,
	}
}

// OnAlarmStatusChanged publishes the new alarm status.
func (p *MQTTPublisher) OnAlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) {
	p.publish(ctx, TopicAlarm, AlarmMessage{Status: status.String()})
}

// OnCatDetected publishes the classifier result.
func (p *MQTTPublisher) OnCatDetected(ctx context.Context, detected bool) {
	p.publish(ctx, TopicCat, CatMessage{Detected: detected})
}

// OnSensorStatusChanged publishes the full sensor list.
func (p *MQTTPublisher) OnSensorStatusChanged(ctx context.Context) {
	sensors, err := p.sensors.Sensors(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to read sensors for MQTT", "error", err)

		return
	}

	messages := make([]SensorMessage, 0, len(sensors))
	for _, s := range sensors {
		messages = append(messages, SensorMessage{
			Name:   s.Name,
			Type:   string(s.Type),
			Active: s.Active,
		})
	}

	p.publish(ctx, TopicSensors, messages)
}

// Topic returns the full topic name for suffix.
func (p *MQTTPublisher) Topic(suffix string) string {
	return path.Join(p.prefix, suffix)
}

func (p *MQTTPublisher) publish(ctx context.Context, suffix string, message any) {
	topic := p.Topic(suffix)

	payload, err := json.Marshal(message)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode MQTT message", "topic", topic, "error", err)

		return
	}

	if err = p.publisher.Publish(ctx, topic, true, payload); err != nil {
		logger.ErrorKV(ctx, "Failed to publish MQTT message", "topic", topic, "error", err)
	}
}
