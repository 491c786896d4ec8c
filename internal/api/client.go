package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls RelayService.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to a daemon listening on socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes a connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Status(ctx context.Context) (status.Snapshot, error) {
	return c.snapshot(ctx, "Status", &emptypb.Empty{})
}

func (c *Client) Start(ctx context.Context) (status.Snapshot, error) {
	return c.snapshot(ctx, "Start", &emptypb.Empty{})
}

func (c *Client) Stop(ctx context.Context) (status.Snapshot, error) {
	return c.snapshot(ctx, "Stop", &emptypb.Empty{})
}

func (c *Client) Logout(ctx context.Context) (status.Snapshot, error) {
	return c.snapshot(ctx, "Logout", &emptypb.Empty{})
}

// SyncChats runs a chat sync. An empty mode uses the daemon's configured one.
func (c *Client) SyncChats(ctx context.Context, mode string) (status.Snapshot, error) {
	return c.snapshot(ctx, "SyncChats", wrapperspb.String(mode))
}

// EnsureChatSynced refetches one chat. A zero limit uses the daemon default.
func (c *Client) EnsureChatSynced(ctx context.Context, chatID string, limit int) (ChatSyncResult, error) {
	var res ChatSyncResult
	req, err := toStruct(map[string]any{"chatId": chatID, "limit": limit})
	if err != nil {
		return res, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("EnsureChatSynced"), req, out); err != nil {
		return res, err
	}
	err = fromStruct(out, &res)
	return res, err
}

func (c *Client) ShowBrowserWindow(ctx context.Context) error {
	return c.cc.Invoke(ctx, fullMethod("ShowBrowserWindow"), &emptypb.Empty{}, &emptypb.Empty{})
}

// PairingCode returns the pending pairing code, or "" when none is.
func (c *Client) PairingCode(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, fullMethod("PairingCode"), &emptypb.Empty{}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// Healthy reports whether the relay service is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := healthpb.NewHealthClient(c.cc).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// WatchStatus calls fn with every snapshot until ctx is done, the stream
// ends or fn returns an error.
func (c *Client) WatchStatus(ctx context.Context, fn func(status.Snapshot) error) error {
	return c.watch(ctx, 0, "WatchStatus", func(s *structpb.Struct) error {
		var snap status.Snapshot
		if err := fromStruct(s, &snap); err != nil {
			return err
		}
		return fn(snap)
	})
}

// WatchLogs calls fn with the buffered log lines and then every new one.
func (c *Client) WatchLogs(ctx context.Context, fn func(logring.Line) error) error {
	return c.watch(ctx, 1, "WatchLogs", func(s *structpb.Struct) error {
		var l logring.Line
		if err := fromStruct(s, &l); err != nil {
			return err
		}
		return fn(l)
	})
}

func (c *Client) watch(ctx context.Context, idx int, name string, fn func(*structpb.Struct) error) error {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[idx], fullMethod(name))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func (c *Client) snapshot(ctx context.Context, method string, req any) (status.Snapshot, error) {
	var snap status.Snapshot
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return snap, err
	}
	err := fromStruct(out, &snap)
	return snap, err
}
