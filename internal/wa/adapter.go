// Package wa implements the relay client on top of a whatsmeow linked
// device.
package wa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/normalize"
	"github.com/matheus3301/wprelay/internal/relay"
	"github.com/matheus3301/wprelay/internal/status"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// SessionDB is the whatsmeow device store inside the client data dir.
const SessionDB = "session.db"

var errNotPaired = errors.New("session is not paired")

// Client is a relay.Client backed by whatsmeow.
type Client struct {
	opts    relay.ClientOptions
	emit    relay.EventHandler
	logger  *zap.Logger
	waLog   waLog.Logger
	journal *journal

	mu        sync.Mutex
	wa        *whatsmeow.Client
	container *sqlstore.Container
	db        *sql.DB
	stopQR    context.CancelFunc
	lastQR    string
	ready     bool
	authed    bool
	destroyed bool
}

// NewFactory returns the relay.ClientFactory creating whatsmeow clients.
func NewFactory() relay.ClientFactory {
	return func(opts relay.ClientOptions, handler relay.EventHandler) (relay.Client, error) {
		return New(opts, handler)
	}
}

// New prepares a client. Nothing connects until Initialize.
func New(opts relay.ClientOptions, handler relay.EventHandler) (*Client, error) {
	if opts.DataDir == "" {
		return nil, errors.New("client data dir is required")
	}
	if err := os.MkdirAll(opts.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create client data dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		handler = func(any) {}
	}
	return &Client{
		opts:    opts,
		emit:    handler,
		logger:  logger,
		waLog:   NewLogger(logger.Named("whatsmeow")),
		journal: newJournal(JournalLimit),
	}, nil
}

// Initialize opens the device store and connects. Unpaired devices start
// the QR pairing flow first.
func (c *Client) Initialize(ctx context.Context) error {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wprelay", [3]uint32{0, 1, 0})

	dbPath := filepath.Join(c.opts.DataDir, SessionDB)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", dbPath),
		c.waLog.Sub("db"),
	)
	if err != nil {
		return fmt.Errorf("create session store: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", dbPath))
	if err != nil {
		_ = container.Close()
		return fmt.Errorf("open session db: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = db.Close()
		_ = container.Close()
		return fmt.Errorf("get device store: %w", err)
	}
	client := whatsmeow.NewClient(device, c.waLog.Sub("client"))
	client.AddEventHandler(c.handle)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		_ = db.Close()
		_ = container.Close()
		return errors.New("client destroyed during initialization")
	}
	c.wa, c.container, c.db = client, container, db
	c.mu.Unlock()

	if client.Store.ID == nil {
		if err := c.startPairing(ctx, client); err != nil {
			return err
		}
	}

	c.logger.Info("connecting to WhatsApp")
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Destroy disconnects and closes the device store. It is safe to call more
// than once.
func (c *Client) Destroy(context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	client, container, db, stopQR := c.wa, c.container, c.db, c.stopQR
	c.mu.Unlock()

	if stopQR != nil {
		stopQR()
	}
	if client != nil {
		c.logger.Info("disconnecting from WhatsApp")
		client.Disconnect()
	}
	var errs []error
	if db != nil {
		errs = append(errs, db.Close())
	}
	if container != nil {
		errs = append(errs, container.Close())
	}
	return errors.Join(errs...)
}

// Logout unlinks the device and removes its credentials.
func (c *Client) Logout(ctx context.Context) error {
	client := c.client()
	if client == nil {
		return errNotPaired
	}
	return client.Logout(ctx)
}

// Account returns the linked account, or nil before pairing.
func (c *Client) Account() *status.Account {
	client := c.client()
	if client == nil || client.Store.ID == nil {
		return nil
	}
	return &status.Account{
		WID:      client.Store.ID.ToNonAD().String(),
		PushName: client.Store.PushName,
		Platform: client.Store.Platform,
	}
}

// GetChats lists joined groups and every chat with journaled messages.
// The group listing is a server round trip and fails while the
// connection is not usable.
func (c *Client) GetChats(ctx context.Context) ([]relay.Chat, error) {
	client := c.client()
	if client == nil || !client.IsLoggedIn() {
		return nil, errNotPaired
	}
	groups, err := client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("get joined groups: %w", err)
	}

	chats := make([]*chat, 0, len(groups))
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		ch := c.groupChat(ctx, g)
		seen[ch.id] = true
		chats = append(chats, ch)
	}
	for _, t := range c.journal.list() {
		if seen[t.id] {
			continue
		}
		jid, err := types.ParseJID(t.id)
		if err != nil || jid.Server == types.GroupServer || jid.Server == types.BroadcastServer {
			continue
		}
		chats = append(chats, c.userChat(ctx, jid))
	}

	sort.SliceStable(chats, func(a, b int) bool { return chats[a].last.After(chats[b].last) })
	out := make([]relay.Chat, 0, len(chats))
	for _, ch := range chats {
		out = append(out, ch)
	}
	return out, nil
}

// GetChatByID returns one chat, or nil when it is unknown.
func (c *Client) GetChatByID(ctx context.Context, id string) (relay.Chat, error) {
	client := c.client()
	if client == nil || !client.IsLoggedIn() {
		return nil, errNotPaired
	}
	jid, err := types.ParseJID(id)
	if err != nil {
		return nil, nil
	}
	jid = jid.ToNonAD()

	if jid.Server == types.GroupServer {
		info, err := client.GetGroupInfo(ctx, jid)
		if errors.Is(err, whatsmeow.ErrGroupNotFound) || errors.Is(err, whatsmeow.ErrNotInGroup) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get group info: %w", err)
		}
		return c.groupChat(ctx, info), nil
	}

	if !c.journal.has(jid.String()) {
		contact, err := client.Store.Contacts.GetContact(ctx, jid)
		if err != nil || !contact.Found {
			return nil, nil
		}
	}
	return c.userChat(ctx, jid), nil
}

// Evaluate runs a read-only SQL script against the device store. @our is
// bound to the linked device. Script failures are reported in the result.
func (c *Client) Evaluate(ctx context.Context, script string) (*relay.EvalResult, error) {
	c.mu.Lock()
	client, db := c.wa, c.db
	c.mu.Unlock()
	if client == nil || db == nil || client.Store.ID == nil {
		return &relay.EvalResult{Error: errNotPaired.Error()}, nil
	}

	rows, err := db.QueryContext(ctx, script, sql.Named("our", client.Store.ID.String()))
	if err != nil {
		return &relay.EvalResult{Error: err.Error()}, nil
	}
	defer func() { _ = rows.Close() }()

	out, err := rowObjects(rows)
	if err != nil {
		return &relay.EvalResult{Error: err.Error()}, nil
	}
	return &relay.EvalResult{OK: true, Rows: out}, nil
}

func rowObjects(rows *sql.Rows) ([]json.RawMessage, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []json.RawMessage{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(object, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

func (c *Client) client() *whatsmeow.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wa
}

func (c *Client) ownJID() types.JID {
	client := c.client()
	if client == nil || client.Store.ID == nil {
		return types.EmptyJID
	}
	return *client.Store.ID
}

// contactName picks the best known name of a user.
func (c *Client) contactName(ctx context.Context, jid types.JID) (name, pushName string) {
	client := c.client()
	if client == nil {
		return "", ""
	}
	info, err := client.Store.Contacts.GetContact(ctx, jid)
	if err != nil || !info.Found {
		return "", ""
	}
	for _, n := range []string{info.FullName, info.BusinessName, info.FirstName} {
		if n != "" {
			return n, info.PushName
		}
	}
	return "", info.PushName
}

func (c *Client) groupChat(ctx context.Context, g *types.GroupInfo) *chat {
	id := g.JID.ToNonAD().String()
	participants := make([]object, 0, len(g.Participants))
	for _, p := range g.Participants {
		member := object{"id": p.JID.ToNonAD().String()}
		lookup := p.JID
		if !p.PhoneNumber.IsEmpty() {
			lookup = p.PhoneNumber
		}
		name, push := c.contactName(ctx, lookup)
		if name != "" {
			member["name"] = name
		}
		if push == "" {
			push = p.DisplayName
		}
		if push != "" {
			member["pushname"] = push
		}
		participants = append(participants, member)
	}

	t, _ := c.journal.info(id)
	name := g.Name
	if name == "" {
		name = t.name
	}
	return &chat{
		c:    c,
		id:   id,
		last: t.last,
		raw:  chatShape(id, name, true, t.unread, t.last, participants),
	}
}

func (c *Client) userChat(ctx context.Context, jid types.JID) *chat {
	id := jid.ToNonAD().String()
	t, _ := c.journal.info(id)
	name, push := c.contactName(ctx, jid)
	if name == "" {
		name = t.name
	}
	if name == "" {
		name = push
	}
	return &chat{
		c:    c,
		id:   id,
		last: t.last,
		raw:  chatShape(id, name, false, t.unread, t.last, nil),
	}
}

// chat is a relay.Chat whose history comes from the journal.
type chat struct {
	c    *Client
	id   string
	last time.Time
	raw  normalize.Raw
}

func (ch *chat) Raw() normalize.Raw { return ch.raw }

func (ch *chat) FetchMessages(_ context.Context, limit int) ([]normalize.Raw, error) {
	return ch.c.journal.recent(ch.id, limit), nil
}
