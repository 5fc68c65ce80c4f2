package client

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	engine "github.com/oshokin/catpoint/internal/service/security"
)

// dogClassifier never sees a cat.
type dogClassifier struct{}

func (dogClassifier) ImageContainsCat(context.Context, image.Image, float32) (bool, error) {
	return false, nil
}

// startServer serves a fresh engine on a loopback port and writes a matching settings file.
func startServer(t *testing.T) *Options {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	api.RegisterSecurityServiceServer(server, api.NewServer(engine.NewService(repo.NewMemoryRepository(), dogClassifier{})))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	configPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(configPath, &config.Config{ServerAddress: listener.Addr().String()}))

	return &Options{
		ConfigPath: configPath,
		Out:        new(bytes.Buffer),
	}
}

func output(opts *Options) string {
	buf := opts.Out.(*bytes.Buffer) //nolint:forcetypeassert // Set by startServer.
	defer buf.Reset()

	return buf.String()
}

// TestRun_Operations runs every CLI operation against a live server.
func TestRun_Operations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	opts := startServer(t)

	require.NoError(t, Run(ctx, opts, Status()))
	require.Regexp(t, `Sensors:\s+none`, output(opts))

	require.NoError(t, Run(ctx, opts, AddSensor(domain.NewSensor("Back door", domain.SensorDoor))))
	require.Contains(t, output(opts), "Back door  door  inactive")

	require.NoError(t, Run(ctx, opts, SetArmingStatus(domain.ArmingArmedAway)))
	require.Contains(t, output(opts), "ARMED_AWAY")

	require.NoError(t, Run(ctx, opts, ChangeSensorActivation("Back door", true)))
	printed := output(opts)
	require.Contains(t, printed, "PENDING_ALARM")
	require.Contains(t, printed, "Back door  door  active")

	imagePath := filepath.Join(t.TempDir(), "camera.png")

	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, image.NewGray(image.Rect(0, 0, 3, 3))))
	require.NoError(t, os.WriteFile(imagePath, encoded.Bytes(), 0o600))

	require.NoError(t, Run(ctx, opts, ScanImage(imagePath)))
	require.Contains(t, output(opts), "Cat detected:  no")

	require.NoError(t, Run(ctx, opts, RemoveSensor("Back door")))
	require.Regexp(t, `Sensors:\s+none`, output(opts))

	require.Error(t, Run(ctx, opts, RemoveSensor("Back door")))
	require.ErrorContains(t, Run(ctx, opts, ScanImage(filepath.Join(t.TempDir(), "missing.png"))), "read image")
}

// TestRun_MissingConfig fails before dialing.
func TestRun_MissingConfig(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "none.yaml")}, Status())
	require.Error(t, err)
}

// TestPrintSnapshot formats a full snapshot.
func TestPrintSnapshot(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, PrintSnapshot(&buf, &domain.Snapshot{
		ArmingStatus: domain.ArmingArmedHome,
		AlarmStatus:  domain.AlarmTriggered,
		CatDetected:  true,
		Sensors: []domain.Sensor{
			{Name: "Hall", Type: domain.SensorMotion, Active: true},
		},
	}))

	require.Equal(t, "Arming:        ARMED_HOME\n"+
		"Alarm:         ALARM\n"+
		"Cat detected:  yes\n"+
		"Sensors:\n"+
		"  Hall  motion  active\n", buf.String())
}
