package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/matheus3301/wprelay/internal/api"
	"github.com/matheus3301/wprelay/internal/logring"
	"github.com/matheus3301/wprelay/internal/session"
	"github.com/matheus3301/wprelay/internal/status"
)

const (
	callTimeout = 10 * time.Second
	// syncTimeout covers a full chat sync with retries and fallback.
	syncTimeout = 3 * time.Minute
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	sessionName, err := session.Resolve(*sessionFlag)
	if err != nil {
		fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := api.Dial(session.SocketPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := printer{json: *jsonFlag}
	switch args[0] {
	case "status":
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		out.snapshot(c.Status(ctx))
	case "start":
		ctx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		out.snapshot(c.Start(ctx))
	case "stop":
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		out.snapshot(c.Stop(ctx))
	case "logout":
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		out.snapshot(c.Logout(ctx))
	case "sync":
		mode := ""
		if len(args) > 1 {
			mode = args[1]
		}
		ctx, cancel := context.WithTimeout(ctx, syncTimeout)
		defer cancel()
		out.snapshot(c.SyncChats(ctx, mode))
	case "chat":
		cmdChat(ctx, c, args[1:], out)
	case "show-browser":
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		if err := c.ShowBrowserWindow(ctx); err != nil {
			fatal(err)
		}
		fmt.Println("Relay window shown.")
	case "health":
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		healthy, err := c.Healthy(ctx)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Serving: %v\n", healthy)
		if !healthy {
			os.Exit(2)
		}
	case "logs":
		cmdLogs(ctx, c, out)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: relayctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                Show relay status")
	fmt.Fprintln(os.Stderr, "  start                 Start the relay session")
	fmt.Fprintln(os.Stderr, "  stop                  Stop the relay session")
	fmt.Fprintln(os.Stderr, "  logout                Log out and unlink the device")
	fmt.Fprintln(os.Stderr, "  sync [mode]           Sync chats (auto, primary or fallback)")
	fmt.Fprintln(os.Stderr, "  chat <id> [limit]     Refetch one chat's history")
	fmt.Fprintln(os.Stderr, "  show-browser          Show the relay window")
	fmt.Fprintln(os.Stderr, "  health                Exit non-zero unless the relay is serving")
	fmt.Fprintln(os.Stderr, "  logs                  Follow the relay log")
}

func cmdChat(ctx context.Context, c *api.Client, args []string, out printer) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: relayctl chat <id> [limit]")
		os.Exit(1)
	}
	limit := 0
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			fatal(fmt.Errorf("invalid limit %q", args[1]))
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	res, err := c.EnsureChatSynced(ctx, args[0], limit)
	if err != nil {
		fatal(err)
	}
	if out.json {
		outputJSON(res)
		return
	}
	fmt.Printf("Chat:    %s\n", res.ChatID)
	fmt.Printf("Entries: %d\n", res.Count)
	for _, e := range res.Entries {
		who := "them"
		switch {
		case e.FromMe:
			who = "me"
		case e.Sender != nil:
			who = *e.Sender
		}
		when := "-"
		if t, ok := e.Time(); ok {
			when = t.Local().Format(time.DateTime)
		}
		fmt.Printf("  [%s] %s: %s\n", when, who, e.Message)
	}
}

func cmdLogs(ctx context.Context, c *api.Client, out printer) {
	err := c.WatchLogs(ctx, func(l logring.Line) error {
		if out.json {
			outputJSON(l)
			return nil
		}
		fmt.Printf("%s %s\n", l.Time.Local().Format("15:04:05"), l.Text)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fatal(err)
	}
}

type printer struct {
	json bool
}

func (p printer) snapshot(s status.Snapshot, err error) {
	if err != nil {
		fatal(err)
	}
	if p.json {
		outputJSON(s)
		return
	}
	fmt.Printf("Status:   %s\n", s.Status)
	if s.Account != nil {
		fmt.Printf("Account:  %s (%s)\n", s.Account.PushName, s.Account.WID)
	}
	if s.ChatsSyncedAt != nil {
		fmt.Printf("Chats:    %d via %s at %s\n", s.ChatCount, s.SyncPath, s.ChatsSyncedAt.Local().Format(time.DateTime))
	}
	if s.SyncingChats {
		fmt.Println("Syncing:  yes")
	}
	if s.LastQR != nil && s.Status == status.WaitingQR {
		fmt.Println("Pairing:  scan the QR code in relaytui or at /relay/qr")
	}
	if msg := s.ErrorText(); msg != "" {
		fmt.Printf("Error:    %s\n", msg)
	}
	fmt.Printf("Version:  %s\n", s.Version)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
