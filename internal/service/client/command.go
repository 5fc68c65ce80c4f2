package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/common"
)

// Options configures how the CLI reaches the panel server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
	// Out receives the printed panel state, stdout when nil.
	Out io.Writer
}

// Operation is a single call against the panel server.
type Operation func(ctx context.Context, client *common.Client) (*domain.Snapshot, error)

// Run connects to the server, performs operation and prints the resulting state.
func Run(ctx context.Context, opts *Options, operation Operation) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "catpoint")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the server's audit log.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	// Connect to panel server with timeout from config.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling panel server", "server_address", serverAddress)

	snapshot, err := operation(ctx, client)
	if err != nil {
		return err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return PrintSnapshot(out, snapshot)
}

// Status reads the panel state.
func Status() Operation {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.Status(ctx)
	}
}

// SetArmingStatus arms or disarms the panel.
func SetArmingStatus(status domain.ArmingStatus) Operation {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.SetArmingStatus(ctx, status)
	}
}

// AddSensor registers a sensor.
func AddSensor(sensor domain.Sensor) Operation {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.AddSensor(ctx, sensor)
	}
}

// RemoveSensor unregisters the sensor called name.
func RemoveSensor(name string) Operation {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.RemoveSensor(ctx, name)
	}
}

// ChangeSensorActivation activates or deactivates the sensor called name.
func ChangeSensorActivation(name string, active bool) Operation {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		return client.ChangeSensorActivation(ctx, name, active)
	}
}

// ScanImage uploads the image file at path for cat detection.
func ScanImage(path string) Operation {
	return func(ctx context.Context, client *common.Client) (*domain.Snapshot, error) {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}

		return client.ProcessImage(ctx, contents)
	}
}

// PrintSnapshot writes a human readable panel state.
func PrintSnapshot(w io.Writer, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		snapshot = new(domain.Snapshot)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Arming:\t%s\n", snapshot.ArmingStatus)
	fmt.Fprintf(tw, "Alarm:\t%s\n", snapshot.AlarmStatus)
	fmt.Fprintf(tw, "Cat detected:\t%s\n", yesNo(snapshot.CatDetected))

	if len(snapshot.Sensors) == 0 {
		fmt.Fprintln(tw, "Sensors:\tnone")

		return tw.Flush()
	}

	fmt.Fprintln(tw, "Sensors:")

	for _, sensor := range snapshot.Sensors {
		state := "inactive"
		if sensor.Active {
			state = "active"
		}

		fmt.Fprintf(tw, "  %s\t%s\t%s\n", sensor.Name, strings.ToLower(string(sensor.Type)), state)
	}

	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}
