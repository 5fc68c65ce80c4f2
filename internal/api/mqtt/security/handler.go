package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/mqtt"
)

// Engine is the part of the alarm engine driven by MQTT commands.
type Engine interface {
	Sensors(ctx context.Context) ([]domain.Sensor, error)
	ChangeSensorActivationStatus(ctx context.Context, sensor domain.Sensor, active bool) (domain.Sensor, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
}

// Subscriber attaches a handler to a topic filter.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler mqtt.Handler) error
}

// SensorCommand is the payload of <prefix>/sensors/<name>/set.
type SensorCommand struct {
	// Active is the new activation flag, required.
	Active *bool `json:"active"`
	// Type is only needed when the sensor is not registered yet.
	Type string `json:"type,omitempty"`
}

// ArmingCommand is the payload of <prefix>/arming/set.
type ArmingCommand struct {
	// Status is an arming status name such as ARMED_AWAY or home.
	Status string `json:"status"`
}

const setSuffix = "set"

// ErrMalformedCommand is returned for payloads or topics that cannot be understood.
var ErrMalformedCommand = errors.New("malformed command")

// Handler routes command topics to the engine.
type Handler struct {
	// engine executes the commands.
	engine Engine
	// prefix is the root of every topic.
	prefix string
	// sensorsChanged runs after every applied sensor command, may be nil.
	sensorsChanged func(ctx context.Context)
}

// Option configures a Handler.
type Option func(h *Handler)

// WithSensorsChanged calls fn after every applied sensor command.
func WithSensorsChanged(fn func(ctx context.Context)) Option {
	return func(h *Handler) {
		h.sensorsChanged = fn
	}
}

// NewHandler creates a handler for topics under prefix.
func NewHandler(engine Engine, prefix string, opts ...Option) *Handler {
	h := &Handler{
		engine: engine,
		prefix: prefix,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// SensorTopic is the filter matching every sensor command topic.
func (h *Handler) SensorTopic() string {
	return path.Join(h.prefix, "sensors", "+", setSuffix)
}

// ArmingTopic is the arming command topic.
func (h *Handler) ArmingTopic() string {
	return path.Join(h.prefix, "arming", setSuffix)
}

// Register subscribes to every command topic.
func (h *Handler) Register(ctx context.Context, subscriber Subscriber) error {
	ctx = logger.WithName(ctx, "mqtt")

	if err := subscriber.Subscribe(ctx, h.SensorTopic(), h.HandleSensorCommand); err != nil {
		return err
	}

	return subscriber.Subscribe(ctx, h.ArmingTopic(), h.HandleArmingCommand)
}

// HandleSensorCommand changes the activation of the sensor named in the topic.
func (h *Handler) HandleSensorCommand(ctx context.Context, topic string, payload []byte) error {
	name, err := h.sensorName(topic)
	if err != nil {
		return err
	}

	var command SensorCommand
	if err = json.Unmarshal(payload, &command); err != nil {
		return fmt.Errorf("%w: decode sensor command: %w", ErrMalformedCommand, err)
	}

	if command.Active == nil {
		return fmt.Errorf("%w: active flag is required", ErrMalformedCommand)
	}

	sensor, err := h.lookupSensor(ctx, name, command.Type)
	if err != nil {
		return err
	}

	if _, err = h.engine.ChangeSensorActivationStatus(ctx, sensor, *command.Active); err != nil {
		return fmt.Errorf("change sensor %q: %w", name, err)
	}

	logger.InfoKV(ctx, "Sensor command applied", "sensor", name, "active", *command.Active)

	if h.sensorsChanged != nil {
		h.sensorsChanged(ctx)
	}

	return nil
}

// HandleArmingCommand changes the arming status.
func (h *Handler) HandleArmingCommand(ctx context.Context, _ string, payload []byte) error {
	var command ArmingCommand
	if err := json.Unmarshal(payload, &command); err != nil {
		return fmt.Errorf("%w: decode arming command: %w", ErrMalformedCommand, err)
	}

	status, err := domain.ParseArmingStatus(command.Status)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}

	if err = h.engine.SetArmingStatus(ctx, status); err != nil {
		return fmt.Errorf("set arming status: %w", err)
	}

	logger.InfoKV(ctx, "Arming command applied", "arming_status", status.String())

	return nil
}

// sensorName extracts <name> from <prefix>/sensors/<name>/set.
func (h *Handler) sensorName(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, path.Join(h.prefix, "sensors")+"/")
	if !ok {
		return "", fmt.Errorf("%w: unexpected topic %q", ErrMalformedCommand, topic)
	}

	name, ok := strings.CutSuffix(rest, "/"+setSuffix)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%w: unexpected topic %q", ErrMalformedCommand, topic)
	}

	return name, nil
}

// lookupSensor returns the registered sensor, or a new one when sensorType is given.
func (h *Handler) lookupSensor(ctx context.Context, name, sensorType string) (domain.Sensor, error) {
	sensors, err := h.engine.Sensors(ctx)
	if err != nil {
		return domain.Sensor{}, fmt.Errorf("read sensors: %w", err)
	}

	for _, s := range sensors {
		if s.Name == name {
			return s, nil
		}
	}

	if sensorType == "" {
		return domain.Sensor{}, fmt.Errorf("%w: unknown sensor %q needs a type", ErrMalformedCommand, name)
	}

	t, err := domain.ParseSensorType(sensorType)
	if err != nil {
		return domain.Sensor{}, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}

	return domain.NewSensor(name, t), nil
}
