package security

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"  // Register GIF decoding for ProcessImage.
	_ "image/jpeg" // Register JPEG decoding for ProcessImage.
	_ "image/png"  // Register PNG decoding for ProcessImage.
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/catpoint/internal/codec"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

// MaxImagePixels bounds the decoded size of an uploaded camera image.
const MaxImagePixels = 40_000_000

// Engine abstracts the alarm operations the transport layer depends on.
type Engine interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, sensor domain.Sensor) error
	ChangeSensorActivationStatus(ctx context.Context, sensor domain.Sensor, active bool) (domain.Sensor, error)
	ProcessImage(ctx context.Context, img image.Image) error
}

// Server implements the SecurityService gRPC API.
type Server struct {
	// engine provides the business logic.
	engine Engine
}

var _ SecurityServiceServer = (*Server)(nil)

// NewServer wires the provided engine into a gRPC handler.
func NewServer(engine Engine) *Server {
	return &Server{
		engine: engine,
	}
}

// GetStatus returns the current panel snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.snapshot(ctx)
}

// SetArmingStatus arms or disarms the panel.
func (s *Server) SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	arming, err := domain.ParseArmingStatus(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	ctx = withActor(ctx)

	if err = s.engine.SetArmingStatus(ctx, arming); err != nil {
		logger.ErrorKV(ctx, "Failed to set arming status", "error", err)

		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// AddSensor registers a sensor.
func (s *Server) AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sensor, err := codec.SensorFromStruct(req)
	if err != nil {
		return nil, toStatus(err)
	}

	ctx = withActor(ctx)

	if err = s.engine.AddSensor(ctx, sensor); err != nil {
		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// RemoveSensor unregisters the sensor named in the request.
func (s *Server) RemoveSensor(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	name := strings.TrimSpace(req.GetValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor name is required")
	}

	ctx = withActor(ctx)

	if err := s.engine.RemoveSensor(ctx, domain.Sensor{Name: name}); err != nil {
		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// ChangeSensorActivation activates or deactivates a sensor. A type is only
// needed for sensors that are not registered yet.
func (s *Server) ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	name := strings.TrimSpace(fields[codec.FieldName].GetStringValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor name is required")
	}

	activeValue, ok := fields[codec.FieldActive].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "active flag is required")
	}

	current, err := s.engine.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	sensor, found := current.Sensor(name)
	if !found {
		typeName := fields[codec.FieldType].GetStringValue()
		if typeName == "" {
			return nil, status.Errorf(codes.NotFound, "sensor %q is not registered", name)
		}

		sensorType, parseErr := domain.ParseSensorType(typeName)
		if parseErr != nil {
			return nil, toStatus(parseErr)
		}

		sensor = domain.NewSensor(name, sensorType)
	}

	ctx = withActor(ctx)

	if _, err = s.engine.ChangeSensorActivationStatus(ctx, sensor, activeValue.BoolValue); err != nil {
		logger.ErrorKV(ctx, "Failed to change sensor activation", "sensor", name, "error", err)

		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

// ProcessImage decodes a PNG, JPEG or GIF image and hands it to the classifier.
func (s *Server) ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(req.GetValue()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}

	// Check the declared size before allocating the pixels.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(req.GetValue()))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode image: %v", err)
	}

	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, status.Errorf(codes.InvalidArgument,
			"image is %dx%d, at most %d pixels are accepted", cfg.Width, cfg.Height, MaxImagePixels)
	}

	img, format, err := image.Decode(bytes.NewReader(req.GetValue()))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode image: %v", err)
	}

	ctx = withActor(ctx)
	logger.DebugKV(ctx, "Image received", "format", format, "bounds", img.Bounds().String())

	if err = s.engine.ProcessImage(ctx, img); err != nil {
		logger.ErrorKV(ctx, "Failed to process image", "error", err)

		return nil, toStatus(err)
	}

	return s.snapshot(ctx)
}

func (s *Server) snapshot(ctx context.Context) (*structpb.Struct, error) {
	snapshot, err := s.engine.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	result, err := codec.SnapshotToStruct(snapshot)
	if err != nil {
		return nil, toStatus(err)
	}

	return result, nil
}

// ActorFromContext reads the calling actor from incoming metadata.
// It returns nil when the caller did not identify itself.
func ActorFromContext(ctx context.Context) *domain.Actor {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}

	actor := &domain.Actor{
		Hostname: firstValue(md, MetadataHostname),
		Username: firstValue(md, MetadataUsername),
	}

	if actor.Hostname == "" && actor.Username == "" {
		return nil
	}

	return actor
}

// withActor adds the calling actor to the context logger.
func withActor(ctx context.Context) context.Context {
	actor := ActorFromContext(ctx)
	if actor == nil {
		return ctx
	}

	return logger.WithKV(ctx, "hostname", actor.Hostname, "username", actor.Username)
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}

	return ""
}

// toStatus maps engine and repository errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, domain.ErrInvalidArmingStatus),
		errors.Is(err, domain.ErrInvalidAlarmStatus),
		errors.Is(err, domain.ErrInvalidSensor),
		errors.Is(err, codec.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, repo.ErrSensorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnexpectedAlarmStatus):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
