package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/metrics"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/status"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type listResult struct {
	chats []Chat
	err   error
}

// fakeClient is a scripted Client that records every call.
type fakeClient struct {
	mu      sync.Mutex
	handler EventHandler

	initErr     error
	readyOnInit bool
	qrOnInit    string

	primary      []listResult
	primaryCalls int
	block        chan struct{}
	// ignoreCancel keeps GetChats waiting on block after ctx is done.
	ignoreCancel bool

	evalResults map[string]*EvalResult
	evalErr     error
	evalCalls   map[string]int

	chatsByID map[string]Chat
	account   *status.Account
	logoutErr error
	destroyed int
	loggedOut int
	shown     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		evalResults: make(map[string]*EvalResult),
		evalCalls:   make(map[string]int),
		chatsByID:   make(map[string]Chat),
		account:     &status.Account{WID: "999@c.us", PushName: "Me", Platform: "android"},
	}
}

func (c *fakeClient) emit(evt any) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(evt)
}

func (c *fakeClient) Initialize(context.Context) error {
	if c.initErr != nil {
		return c.initErr
	}
	if c.qrOnInit != "" {
		c.emit(QR{Code: c.qrOnInit})
	}
	if c.readyOnInit {
		c.emit(Ready{})
	}
	return nil
}

func (c *fakeClient) Destroy(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
	return nil
}

func (c *fakeClient) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut++
	return c.logoutErr
}

func (c *fakeClient) GetChats(ctx context.Context) ([]Chat, error) {
	c.mu.Lock()
	c.primaryCalls++
	n := c.primaryCalls
	block, ignoreCancel := c.block, c.ignoreCancel
	c.mu.Unlock()

	switch {
	case block == nil:
	case ignoreCancel:
		<-block
	default:
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if len(c.primary) == 0 {
		return nil, nil
	}
	r := c.primary[min(n, len(c.primary))-1]
	return r.chats, r.err
}

func (c *fakeClient) GetChatByID(_ context.Context, id string) (Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatsByID[id], nil
}

func (c *fakeClient) Evaluate(_ context.Context, script string) (*EvalResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evalCalls[script]++
	if c.evalErr != nil {
		return nil, c.evalErr
	}
	if res, ok := c.evalResults[script]; ok {
		return res, nil
	}
	return &EvalResult{OK: true}, nil
}

func (c *fakeClient) Account() *status.Account {
	return c.account
}

func (c *fakeClient) ShowWindow(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown++
	return nil
}

func (c *fakeClient) calls() (primary, fallback int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primaryCalls, c.evalCalls[ChatsScript]
}

func (c *fakeClient) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// fakeChat is a raw chat with a message history.
type fakeChat struct {
	raw      normalize.Raw
	messages []normalize.Raw
}

func (c *fakeChat) Raw() normalize.Raw { return c.raw }

func (c *fakeChat) FetchMessages(_ context.Context, limit int) ([]normalize.Raw, error) {
	if limit < len(c.messages) {
		return c.messages[len(c.messages)-limit:], nil
	}
	return c.messages, nil
}

func chat(id string) Chat {
	return &fakeChat{raw: normalize.Raw(`{"id": {"_serialized": "` + id + `"}, "name": "` + id + `"}`)}
}

func rows(objs ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(objs))
	for _, o := range objs {
		out = append(out, json.RawMessage(o))
	}
	return out
}

type replaced struct {
	chatID  string
	entries []normalize.Entry
	hints   normalize.Hints
}

// fakeStore records writes.
type fakeStore struct {
	mu       sync.Mutex
	upserts  []string
	patches  map[string]normalize.ChatPatch
	appends  []string
	replaces []replaced
}

func newFakeStore() *fakeStore {
	return &fakeStore{patches: make(map[string]normalize.ChatPatch)}
}

func (s *fakeStore) UpsertChatMeta(_ context.Context, chatID string, patch normalize.ChatPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, chatID)
	s.patches[chatID] = patch
	return nil
}

func (s *fakeStore) AppendMessage(_ context.Context, chatID string, _ normalize.Entry, _ normalize.Hints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends = append(s.appends, chatID)
	return nil
}

func (s *fakeStore) ReplaceEntries(_ context.Context, chatID string, entries []normalize.Entry, hints normalize.Hints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaces = append(s.replaces, replaced{chatID, entries, hints})
	return nil
}

func (s *fakeStore) upsertIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.upserts...)
}

type harness struct {
	m         *Manager
	client    *fakeClient
	store     *fakeStore
	metrics   *metrics.Metrics
	logs      *observer.ObservedLogs
	factories int
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Mode:          ModeAuto,
		RetryAttempts: 2,
		ResyncDelay:   time.Hour,
		SessionDir:    t.TempDir(),
		Location:      time.UTC,
	}
}

func newHarness(t *testing.T, cfg Config, fc *fakeClient) *harness {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	h := &harness{client: fc, store: newFakeStore(), metrics: metrics.New(), logs: logs}
	factory := func(_ ClientOptions, handler EventHandler) (Client, error) {
		h.factories++
		fc.mu.Lock()
		fc.handler = handler
		fc.mu.Unlock()
		return fc, nil
	}
	h.m = NewManager(cfg, factory, h.store, nil, zap.New(core), h.metrics)
	t.Cleanup(func() { _, _ = h.m.Stop(context.Background()) })
	return h
}

// startReady starts the relay and waits for the first sync to finish.
func (h *harness) startReady(t *testing.T) {
	t.Helper()
	h.client.readyOnInit = true
	if _, err := h.m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, func() bool {
		s := h.m.Status()
		return s.Status == status.Running && !s.SyncingChats && (s.ChatsSyncedAt != nil || s.LastError != nil)
	})
}

func (h *harness) logCount(msg string) int {
	return h.logs.FilterMessage(msg).Len()
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
