package security

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/catpoint/internal/codec"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	engine "github.com/oshokin/catpoint/internal/service/security"
)

// catClassifier always sees a cat.
type catClassifier struct{}

func (catClassifier) ImageContainsCat(context.Context, image.Image, float32) (bool, error) {
	return true, nil
}

// newTestClient serves a fresh engine over an in-memory listener.
func newTestClient(t *testing.T) *SecurityServiceClient {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterSecurityServiceServer(server, NewServer(engine.NewService(repo.NewMemoryRepository(), catClassifier{})))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return NewSecurityServiceClient(conn)
}

func decode(t *testing.T, st *structpb.Struct) *domain.Snapshot {
	t.Helper()

	snapshot, err := codec.SnapshotFromStruct(st)
	require.NoError(t, err)

	return snapshot
}

func sensorRequest(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()

	st, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	return st
}

// TestServer_Flow drives a whole arming and intrusion scenario over gRPC.
func TestServer_Flow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	response, err := client.GetStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, &domain.Snapshot{}, decode(t, response))

	_, err = client.AddSensor(ctx, sensorRequest(t, map[string]any{"name": "Front", "type": "door"}))
	require.NoError(t, err)

	response, err = client.SetArmingStatus(ctx, "home")
	require.NoError(t, err)
	require.Equal(t, domain.ArmingArmedHome, decode(t, response).ArmingStatus)

	response, err = client.ChangeSensorActivation(ctx, sensorRequest(t, map[string]any{"name": "Front", "active": true}))
	require.NoError(t, err)

	snapshot := decode(t, response)
	require.Equal(t, domain.AlarmPending, snapshot.AlarmStatus)
	require.Equal(t, []domain.Sensor{{Name: "Front", Type: domain.SensorDoor, Active: true}}, snapshot.Sensors)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	response, err = client.ProcessImage(ctx, buf.Bytes())
	require.NoError(t, err)

	snapshot = decode(t, response)
	require.True(t, snapshot.CatDetected)
	require.Equal(t, domain.AlarmTriggered, snapshot.AlarmStatus)

	response, err = client.SetArmingStatus(ctx, "DISARMED")
	require.NoError(t, err)
	require.Equal(t, domain.AlarmNone, decode(t, response).AlarmStatus)

	response, err = client.RemoveSensor(ctx, "Front")
	require.NoError(t, err)
	require.Empty(t, decode(t, response).Sensors)
}

// TestServer_ErrorCodes maps engine failures to status codes.
func TestServer_ErrorCodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.SetArmingStatus(ctx, "party")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.AddSensor(ctx, sensorRequest(t, map[string]any{"name": "x", "type": "laser"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.RemoveSensor(ctx, "ghost")
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.RemoveSensor(ctx, " ")
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ChangeSensorActivation(ctx, sensorRequest(t, map[string]any{"name": "ghost", "active": true}))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.ChangeSensorActivation(ctx, sensorRequest(t, map[string]any{"name": "ghost"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ProcessImage(ctx, []byte("not an image"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.ProcessImage(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SetArmingStatus(ctx, "home")
	require.NoError(t, err)

	// Deactivating while nothing is pending breaks the alarm invariant.
	_, err = client.ChangeSensorActivation(ctx,
		sensorRequest(t, map[string]any{"name": "Hall", "type": "motion", "active": false}))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

// pngHeader returns a PNG signature and header chunk declaring the given size, without pixel data.
func pngHeader(width, height uint32) []byte {
	header := make([]byte, 13)
	binary.BigEndian.PutUint32(header[0:4], width)
	binary.BigEndian.PutUint32(header[4:8], height)
	header[8] = 8 // Bit depth.
	header[9] = 2 // Truecolor.

	var buf bytes.Buffer

	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(header)))

	chunk := append([]byte("IHDR"), header...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))

	return buf.Bytes()
}

// TestServer_ProcessImageTooLarge rejects images whose declared size exceeds the pixel limit.
func TestServer_ProcessImageTooLarge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.ProcessImage(ctx, pngHeader(100_000, 100_000))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Contains(t, status.Convert(err).Message(), "pixels")

	// A header that fits the limit gets past the size check and fails on the missing pixel data.
	_, err = client.ProcessImage(ctx, pngHeader(4, 4))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.NotContains(t, status.Convert(err).Message(), "pixels")
}

// TestServer_UnknownSensorWithType registers the sensor on first activation.
func TestServer_UnknownSensorWithType(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.SetArmingStatus(ctx, "away")
	require.NoError(t, err)

	response, err := client.ChangeSensorActivation(ctx,
		sensorRequest(t, map[string]any{"name": "Garage", "type": "WINDOW", "active": true}))
	require.NoError(t, err)

	snapshot := decode(t, response)
	require.Equal(t, domain.AlarmPending, snapshot.AlarmStatus)
	require.Equal(t, []domain.Sensor{{Name: "Garage", Type: domain.SensorWindow, Active: true}}, snapshot.Sensors)
}

// TestActorFromContext reads the actor from incoming metadata.
func TestActorFromContext(t *testing.T) {
	t.Parallel()

	require.Nil(t, ActorFromContext(context.Background()))
	require.Nil(t, ActorFromContext(metadata.NewIncomingContext(context.Background(), metadata.MD{})))

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(MetadataHostname, "kitchen-pc", MetadataUsername, "alice"))

	require.Equal(t, &domain.Actor{Hostname: "kitchen-pc", Username: "alice"}, ActorFromContext(ctx))
}

// TestToStatus keeps context errors and falls back to Internal.
func TestToStatus(t *testing.T) {
	t.Parallel()

	require.NoError(t, toStatus(nil))
	require.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	require.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	require.Equal(t, codes.Internal, status.Code(toStatus(net.ErrClosed)))
}
