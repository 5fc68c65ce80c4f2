//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/codec"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Client wraps the SecurityService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the panel server.
	conn *grpc.ClientConn
	// api is the SecurityService client.
	api *api.SecurityServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor identifies the caller in every request, may be nil.
	actor *domain.Actor
	// dialOptions are extra options passed to grpc.NewClient.
	dialOptions []grpc.DialOption
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sends actor along with every call.
func WithActor(actor *domain.Actor) Option {
	return func(c *Client) {
		c.actor = actor.Clone()
	}
}

// WithDialOptions appends gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the panel server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, client.dialOptions...)

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial panel server: %w", err)
	}

	client.conn = conn
	client.api = api.NewSecurityServiceClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Status retrieves the current panel snapshot.
func (c *Client) Status(ctx context.Context) (*domain.Snapshot, error) {
	return c.call(ctx, "get status", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.GetStatus(ctx)
	})
}

// SetArmingStatus arms or disarms the panel.
func (c *Client) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) (*domain.Snapshot, error) {
	return c.call(ctx, "set arming status", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.SetArmingStatus(ctx, status.String())
	})
}

// AddSensor registers a sensor.
func (c *Client) AddSensor(ctx context.Context, sensor domain.Sensor) (*domain.Snapshot, error) {
	request, err := codec.SensorToStruct(sensor)
	if err != nil {
		return nil, err
	}

	return c.call(ctx, "add sensor", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.AddSensor(ctx, request)
	})
}

// RemoveSensor unregisters the sensor called name.
func (c *Client) RemoveSensor(ctx context.Context, name string) (*domain.Snapshot, error) {
	return c.call(ctx, "remove sensor", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.RemoveSensor(ctx, name)
	})
}

// ChangeSensorActivation activates or deactivates a registered sensor.
func (c *Client) ChangeSensorActivation(ctx context.Context, name string, active bool) (*domain.Snapshot, error) {
	request, err := structpb.NewStruct(map[string]any{
		codec.FieldName:   name,
		codec.FieldActive: active,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sensor change: %w", err)
	}

	return c.call(ctx, "change sensor activation", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.ChangeSensorActivation(ctx, request)
	})
}

// ProcessImage uploads an encoded image for cat detection.
func (c *Client) ProcessImage(ctx context.Context, image []byte) (*domain.Snapshot, error) {
	return c.call(ctx, "process image", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.ProcessImage(ctx, image)
	})
}

// call runs fn under the call timeout with the actor metadata and decodes the snapshot.
func (c *Client) call(
	ctx context.Context,
	operation string,
	fn func(ctx context.Context) (*structpb.Struct, error),
) (*domain.Snapshot, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := fn(callCtx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	snapshot, err := codec.SnapshotFromStruct(response)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	return snapshot, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline. The actor, when
// known, travels as outgoing metadata.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.actor != nil {
		ctx = metadata.AppendToOutgoingContext(ctx,
			api.MetadataHostname, c.actor.Hostname,
			api.MetadataUsername, c.actor.Username)
	}

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
