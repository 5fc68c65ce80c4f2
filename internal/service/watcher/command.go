package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/common"
)

// Options controls the watcher polling behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// PollInterval defines the interval between status checks.
	PollInterval time.Duration
	// OnChange, when set, receives every snapshot that differs from the previous one.
	OnChange func(snapshot *domain.Snapshot)
}

// DefaultPollInterval defines the polling interval for status checks.
const DefaultPollInterval = 5 * time.Second

// Run polls the panel state until ctx is canceled and logs changes.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "catpoint-watch")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	// Determine server address: command line argument overrides config.
	serverAddress := cfg.ServerAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Detect current system actor for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	// Establish gRPC connection with timeout from configuration.
	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return fmt.Errorf("dial server: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching panel state", "server_address", serverAddress, "interval", pollInterval.String())

	w := &watcher{onChange: opts.OnChange}

	// Check once right away, the ticker only fires after the first interval.
	w.check(ctx, client)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			w.check(ctx, client)
		}
	}
}

// watcher remembers the last seen snapshot.
type watcher struct {
	// last is the previous snapshot, nil before the first successful poll.
	last *domain.Snapshot
	// onChange is notified of every transition, may be nil.
	onChange func(snapshot *domain.Snapshot)
}

// check polls once and logs what changed. Failures are logged and retried on the next tick.
func (w *watcher) check(ctx context.Context, client *common.Client) {
	snapshot, err := client.Status(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Status check failed", "error", err)

		return
	}

	if !w.observe(ctx, snapshot) {
		return
	}

	if w.onChange != nil {
		w.onChange(snapshot.Clone())
	}
}

// observe logs the differences to the previous snapshot and reports whether there were any.
func (w *watcher) observe(ctx context.Context, snapshot *domain.Snapshot) bool {
	previous := w.last
	w.last = snapshot

	if previous == nil {
		logger.InfoKV(ctx, "Panel state",
			"arming_status", snapshot.ArmingStatus.String(),
			"alarm_status", snapshot.AlarmStatus.String(),
			"cat_detected", snapshot.CatDetected,
			"sensors", len(snapshot.Sensors))

		return true
	}

	changed := false

	if previous.ArmingStatus != snapshot.ArmingStatus {
		logger.InfoKV(ctx, "Arming status changed",
			"from", previous.ArmingStatus.String(), "to", snapshot.ArmingStatus.String())

		changed = true
	}

	if previous.AlarmStatus != snapshot.AlarmStatus {
		kvs := []any{"from", previous.AlarmStatus.String(), "to", snapshot.AlarmStatus.String()}

		if snapshot.AlarmStatus == domain.AlarmTriggered {
			logger.WarnKV(ctx, "ALARM!", kvs...)
		} else {
			logger.InfoKV(ctx, "Alarm status changed", kvs...)
		}

		changed = true
	}

	if previous.CatDetected != snapshot.CatDetected {
		logger.InfoKV(ctx, "Cat detection changed", "cat_detected", snapshot.CatDetected)

		changed = true
	}

	return changed
}
