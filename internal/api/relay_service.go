// Package api serves the relay control service over gRPC.
package api

import (
	"context"
	"strings"
	"sync"

	"github.com/matheus3301/wprelay/internal/bus"
	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/relay"
	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Controller is the relay session as driven over the API.
type Controller interface {
	Status() status.Snapshot
	Start(ctx context.Context) (status.Snapshot, error)
	Stop(ctx context.Context) (status.Snapshot, error)
	Logout(ctx context.Context) (status.Snapshot, error)
	SyncChats(ctx context.Context, opts relay.SyncOptions) (status.Snapshot, error)
	EnsureChatSynced(ctx context.Context, chatID string, opts relay.EnsureOptions) ([]normalize.Entry, error)
	ShowBrowserWindow(ctx context.Context) error
	QRCode() string
}

// ChatSyncResult is the reply of EnsureChatSynced.
type ChatSyncResult struct {
	ChatID  string            `json:"chatId"`
	Count   int               `json:"count"`
	Entries []normalize.Entry `json:"entries"`
}

// RelayService implements the RelayService gRPC service.
type RelayService struct {
	ctrl   Controller
	bus    *bus.Bus
	logs   *logring.Ring
	logger *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewRelayService creates a new relay service.
func NewRelayService(ctrl Controller, b *bus.Bus, logs *logring.Ring, logger *zap.Logger) *RelayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{ctrl: ctrl, bus: b, logs: logs, logger: logger, done: make(chan struct{})}
}

// Close ends the open watch streams.
func (s *RelayService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Register adds the service to srv.
func (s *RelayService) Register(srv grpc.ServiceRegistrar) {
	srv.RegisterService(&ServiceDesc, s)
}

func (s *RelayService) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return snapshotStruct(s.ctrl.Status())
}

func (s *RelayService) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.ctrl.Start(ctx)
	if err != nil {
		return nil, toStatus("start relay", err)
	}
	return snapshotStruct(snap)
}

func (s *RelayService) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.ctrl.Stop(ctx)
	if err != nil {
		return nil, toStatus("stop relay", err)
	}
	return snapshotStruct(snap)
}

func (s *RelayService) Logout(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.ctrl.Logout(ctx)
	if err != nil {
		return nil, toStatus("logout relay session", err)
	}
	return snapshotStruct(snap)
}

// SyncChats takes an optional mode name.
func (s *RelayService) SyncChats(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	snap, err := s.ctrl.SyncChats(ctx, relay.SyncOptions{Mode: relay.Mode(req.GetValue())})
	if err != nil {
		return nil, toStatus("sync chats", err)
	}
	return snapshotStruct(snap)
}

// EnsureChatSynced takes {"chatId": string, "limit": number}.
func (s *RelayService) EnsureChatSynced(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		ChatID string `json:"chatId"`
		Limit  int    `json:"limit"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	in.ChatID = strings.TrimSpace(in.ChatID)
	if in.ChatID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "chatId is required")
	}

	entries, err := s.ctrl.EnsureChatSynced(ctx, in.ChatID, relay.EnsureOptions{Limit: in.Limit})
	if err != nil {
		return nil, toStatus("sync chat", err)
	}
	return toStruct(ChatSyncResult{ChatID: in.ChatID, Count: len(entries), Entries: entries})
}

func (s *RelayService) ShowBrowserWindow(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.ctrl.ShowBrowserWindow(ctx); err != nil {
		return nil, toStatus("show relay window", err)
	}
	return &emptypb.Empty{}, nil
}

// PairingCode returns the raw pending pairing code, or "" when none is.
func (s *RelayService) PairingCode(_ context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.ctrl.QRCode()), nil
}

// WatchStatus sends the current snapshot and then every published one.
func (s *RelayService) WatchStatus(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ch, unsub := s.bus.Subscribe(bus.KindStatus, 64)
	defer unsub()

	if err := sendSnapshot(stream, s.ctrl.Status()); err != nil {
		return err
	}
	for {
		select {
		case evt := <-ch:
			snap, ok := evt.Payload.(status.Snapshot)
			if !ok {
				continue
			}
			if err := sendSnapshot(stream, snap); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

// WatchLogs replays the buffered log lines and follows new ones.
func (s *RelayService) WatchLogs(_ *emptypb.Empty, stream grpc.ServerStream) error {
	backlog, ch, stop := s.logs.Follow(256)
	defer stop()

	for _, l := range backlog {
		if err := sendLine(stream, l); err != nil {
			return err
		}
	}
	for {
		select {
		case l := <-ch:
			if err := sendLine(stream, l); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

func snapshotStruct(snap status.Snapshot) (*structpb.Struct, error) {
	out, err := toStruct(snap)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

func sendSnapshot(stream grpc.ServerStream, snap status.Snapshot) error {
	msg, err := snapshotStruct(snap)
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

func sendLine(stream grpc.ServerStream, l logring.Line) error {
	msg, err := toStruct(l)
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "encode log line: %v", err)
	}
	return stream.SendMsg(msg)
}
