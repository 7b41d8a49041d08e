//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/modpack-installer/internal/api/grpc/installer"
	"github.com/oshokin/modpack-installer/internal/config"
	"github.com/oshokin/modpack-installer/internal/domain/modpack"
)

// Client talks to a remote install server.
type Client struct {
	// conn is the underlying gRPC connection to the install server.
	conn *grpc.ClientConn
	// health is the standard gRPC health client used for reachability checks.
	health healthpb.HealthClient

	// callTimeout bounds unary calls. Install streams are not limited.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errNotServing is returned when the server reports a non-serving health status.
	errNotServing = errors.New("install server is not serving")
)

// Dial creates a client for the install server at address.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial install server: %w", err)
	}

	client := &Client{
		conn:        conn,
		health:      healthpb.NewHealthClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// CheckHealth verifies that the install service is up.
func (c *Client) CheckHealth(ctx context.Context) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.health.Check(callCtx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return fmt.Errorf("check health: %w", err)
	}

	if response.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s: %w", response.GetStatus(), errNotServing)
	}

	return nil
}

// Install asks the server to perform an install and relays every status
// message to onStatus as it arrives. Domain errors returned by the server can
// be matched with errors.Is.
func (c *Client) Install(
	ctx context.Context,
	req *modpack.InstallRequest,
	onStatus func(modpack.StatusMessage),
) ([]modpack.StatusMessage, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.conn.NewStream(streamCtx, &api.ServiceDesc.Streams[0], api.InstallMethod)
	if err != nil {
		return nil, fmt.Errorf("open install stream: %w", api.ErrorFromStatus(err))
	}

	// io.EOF means the server already ended the stream; its status arrives with RecvMsg.
	if err = stream.SendMsg(api.RequestToProto(req)); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("send install request: %w", api.ErrorFromStatus(err))
	}

	if err = stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close install request: %w", err)
	}

	var messages []modpack.StatusMessage

	for {
		msg := new(structpb.Struct)

		err = stream.RecvMsg(msg)
		if errors.Is(err, io.EOF) {
			return messages, nil
		}

		if err != nil {
			return messages, fmt.Errorf("install: %w", api.ErrorFromStatus(err))
		}

		message := api.StatusFromProto(msg)
		messages = append(messages, message)

		if onStatus != nil {
			onStatus(message)
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
