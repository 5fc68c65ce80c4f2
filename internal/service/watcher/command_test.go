package watcher

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/classifier"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	engine "github.com/oshokin/catpoint/internal/service/security"
)

// TestWatcher_Observe reports only transitions.
func TestWatcher_Observe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w := new(watcher)

	require.True(t, w.observe(ctx, &domain.Snapshot{}))
	require.False(t, w.observe(ctx, &domain.Snapshot{}))
	require.True(t, w.observe(ctx, &domain.Snapshot{ArmingStatus: domain.ArmingArmedHome}))
	require.True(t, w.observe(ctx, &domain.Snapshot{ArmingStatus: domain.ArmingArmedHome, AlarmStatus: domain.AlarmTriggered}))
	require.True(t, w.observe(ctx, &domain.Snapshot{
		ArmingStatus: domain.ArmingArmedHome,
		AlarmStatus:  domain.AlarmTriggered,
		CatDetected:  true,
	}))
	// Sensor changes alone are not transitions.
	require.False(t, w.observe(ctx, &domain.Snapshot{
		ArmingStatus: domain.ArmingArmedHome,
		AlarmStatus:  domain.AlarmTriggered,
		CatDetected:  true,
		Sensors:      []domain.Sensor{domain.NewSensor("Front", domain.SensorDoor)},
	}))
}

// TestRun_ReportsChangesAndStops watches a live server and exits on cancel.
func TestRun_ReportsChangesAndStops(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	service := engine.NewService(repo.NewMemoryRepository(), classifier.NewFakeClassifier())
	server := grpc.NewServer()
	api.RegisterSecurityServiceServer(server, api.NewServer(service))

	go func() {
		_ = server.Serve(listener)
	}()

	t.Cleanup(server.Stop)

	configPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(configPath, &config.Config{
		ServerAddress: listener.Addr().String(),
		Timeout:       time.Second,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan *domain.Snapshot, 10)
	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, &Options{
			ConfigPath:   configPath,
			PollInterval: 20 * time.Millisecond,
			OnChange:     func(snapshot *domain.Snapshot) { changes <- snapshot },
		})
	}()

	first := <-changes
	require.Equal(t, domain.ArmingDisarmed, first.ArmingStatus)

	require.NoError(t, service.SetArmingStatus(context.Background(), domain.ArmingArmedAway))

	select {
	case next := <-changes:
		require.Equal(t, domain.ArmingArmedAway, next.ArmingStatus)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watcher missed the arming change")
	}

	cancel()
	require.NoError(t, <-done)
}
