package api

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/wprelay/internal/bus"
	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/relay"
	"github.com/matheus3301/wprelay/internal/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeController struct {
	mu        sync.Mutex
	snap      status.Snapshot
	startErr  error
	syncModes []relay.Mode
	ensureID  string
	ensureLim int
	ensureErr error
	showErr   error
	qr        string
	calls     []string
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeController) Status() status.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Start(context.Context) (status.Snapshot, error) {
	f.record("start")
	if f.startErr != nil {
		return f.Status(), f.startErr
	}
	f.mu.Lock()
	f.snap.Status = status.Starting
	f.mu.Unlock()
	return f.Status(), nil
}

func (f *fakeController) Stop(context.Context) (status.Snapshot, error) {
	f.record("stop")
	return f.Status(), nil
}

func (f *fakeController) Logout(context.Context) (status.Snapshot, error) {
	f.record("logout")
	return f.Status(), nil
}

func (f *fakeController) SyncChats(_ context.Context, opts relay.SyncOptions) (status.Snapshot, error) {
	f.mu.Lock()
	f.syncModes = append(f.syncModes, opts.Mode)
	f.mu.Unlock()
	return f.Status(), nil
}

func (f *fakeController) EnsureChatSynced(_ context.Context, chatID string, opts relay.EnsureOptions) ([]normalize.Entry, error) {
	f.mu.Lock()
	f.ensureID, f.ensureLim = chatID, opts.Limit
	f.mu.Unlock()
	if f.ensureErr != nil {
		return nil, f.ensureErr
	}
	id := "m1"
	return []normalize.Entry{{Message: "hello", Type: normalize.TypeMessage, MessageID: &id}}, nil
}

func (f *fakeController) QRCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.qr
}

func (f *fakeController) ShowBrowserWindow(context.Context) error {
	f.record("show")
	return f.showErr
}

type testEnv struct {
	ctrl   *fakeController
	bus    *bus.Bus
	logs   *logring.Ring
	client *Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		ctrl: &fakeController{snap: status.Snapshot{Status: status.Stopped, Version: "test"}},
		bus:  bus.New(),
		logs: logring.New(10),
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	NewRelayService(env.ctrl, env.bus, env.logs, nil).Register(srv)
	healthpb.RegisterHealthServer(srv, NewHealthServer(status.Stopped))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	env.client = NewClient(conn)
	return env
}

func TestStatusRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := "boom"
	env.ctrl.snap = status.Snapshot{
		Status:        status.Running,
		ReadyAt:       &now,
		LastError:     &msg,
		Account:       &status.Account{WID: "123@c.us", PushName: "Ann"},
		ChatCount:     7,
		SyncPath:      status.PathFallback,
		ChatsSyncedAt: &now,
		Version:       "test",
	}

	snap, err := env.client.Status(t.Context())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if snap.Status != status.Running || snap.ChatCount != 7 || snap.SyncPath != status.PathFallback {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.ErrorText() != "boom" {
		t.Errorf("lastError = %q, want boom", snap.ErrorText())
	}
	if snap.Account == nil || snap.Account.WID != "123@c.us" {
		t.Errorf("account = %+v", snap.Account)
	}
	if snap.ReadyAt == nil || !snap.ReadyAt.Equal(now) {
		t.Errorf("readyAt = %v, want %v", snap.ReadyAt, now)
	}
}

func TestStartFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.startErr = errors.New("initialize relay client: no network")

	_, err := env.client.Start(t.Context())
	if code := grpcstatus.Code(err); code != codes.Internal {
		t.Fatalf("Start() code = %v, want Internal (err %v)", code, err)
	}
}

func TestSyncChatsPassesMode(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.client.SyncChats(t.Context(), "fallback"); err != nil {
		t.Fatalf("SyncChats() error = %v", err)
	}
	if _, err := env.client.SyncChats(t.Context(), ""); err != nil {
		t.Fatalf("SyncChats() error = %v", err)
	}
	if len(env.ctrl.syncModes) != 2 || env.ctrl.syncModes[0] != relay.ModeFallback || env.ctrl.syncModes[1] != "" {
		t.Errorf("modes = %v", env.ctrl.syncModes)
	}
}

func TestEnsureChatSynced(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.client.EnsureChatSynced(t.Context(), "123@c.us", 50)
	if err != nil {
		t.Fatalf("EnsureChatSynced() error = %v", err)
	}
	if res.ChatID != "123@c.us" || res.Count != 1 || len(res.Entries) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Entries[0].Message != "hello" || res.Entries[0].MessageID == nil || *res.Entries[0].MessageID != "m1" {
		t.Errorf("entry = %+v", res.Entries[0])
	}
	if env.ctrl.ensureID != "123@c.us" || env.ctrl.ensureLim != 50 {
		t.Errorf("controller got %q/%d", env.ctrl.ensureID, env.ctrl.ensureLim)
	}
}

func TestEnsureChatSyncedErrors(t *testing.T) {
	tests := []struct {
		name   string
		chatID string
		err    error
		want   codes.Code
	}{
		{"missing id", "  ", nil, codes.InvalidArgument},
		{"unknown chat", "x@c.us", relay.ErrChatNotFound, codes.NotFound},
		{"not running", "x@c.us", relay.ErrNotRunning, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.ctrl.ensureErr = tt.err
			_, err := env.client.EnsureChatSynced(t.Context(), tt.chatID, 0)
			if code := grpcstatus.Code(err); code != tt.want {
				t.Errorf("code = %v, want %v (err %v)", code, tt.want, err)
			}
		})
	}
}

func TestShowBrowserWindowHeadless(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.showErr = relay.ErrHeadless

	err := env.client.ShowBrowserWindow(t.Context())
	if code := grpcstatus.Code(err); code != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition", code)
	}
}

func TestPairingCode(t *testing.T) {
	env := newTestEnv(t)

	code, err := env.client.PairingCode(t.Context())
	if err != nil || code != "" {
		t.Fatalf("PairingCode() = %q, %v; want empty", code, err)
	}
	env.ctrl.mu.Lock()
	env.ctrl.qr = "2@pairing-ref"
	env.ctrl.mu.Unlock()
	if code, _ := env.client.PairingCode(t.Context()); code != "2@pairing-ref" {
		t.Errorf("PairingCode() = %q", code)
	}
}

func TestWatchStatusSendsCurrentThenUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	got := make(chan status.Snapshot, 4)
	go func() {
		_ = env.client.WatchStatus(ctx, func(s status.Snapshot) error {
			got <- s
			return nil
		})
	}()

	first := <-got
	if first.Status != status.Stopped {
		t.Fatalf("first status = %s, want stopped", first.Status)
	}
	env.bus.Emit(bus.KindStatus, status.Snapshot{Status: status.Starting})
	select {
	case s := <-got:
		if s.Status != status.Starting {
			t.Errorf("update status = %s, want starting", s.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for status update")
	}
}

func TestWatchLogsReplaysBuffer(t *testing.T) {
	env := newTestEnv(t)
	env.logs.Push(logring.Line{ID: "1", Text: "Starting relay…"})
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	got := make(chan logring.Line, 4)
	go func() {
		_ = env.client.WatchLogs(ctx, func(l logring.Line) error {
			got <- l
			return nil
		})
	}()

	if l := <-got; l.Text != "Starting relay…" {
		t.Fatalf("replayed %q", l.Text)
	}
	deadline := time.After(2 * time.Second)
	for {
		env.logs.Push(logring.Line{ID: "2", Text: "Relay is ready."})
		select {
		case l := <-got:
			if l.Text != "Relay is ready." {
				t.Errorf("followed %q", l.Text)
			}
			return
		case <-deadline:
			t.Fatal("timeout waiting for followed line")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHealthTracksState(t *testing.T) {
	b := bus.New()
	hs := NewHealthServer(status.Stopped)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	ReportHealth(ctx, hs, b)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := hs.Check(t.Context(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatal(err)
		}
		return resp.GetStatus()
	}
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial = %v, want NOT_SERVING", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for check() != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("relay service never reported serving")
		}
		b.Emit(bus.KindStatus, status.Snapshot{Status: status.Running})
		time.Sleep(10 * time.Millisecond)
	}
}
