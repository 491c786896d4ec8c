package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/matheus3301/wprelay/internal/api"
	"github.com/matheus3301/wprelay/internal/status"
)

// Relay is the part of the daemon client the monitor drives.
type Relay interface {
	Start(ctx context.Context) (status.Snapshot, error)
	Stop(ctx context.Context) (status.Snapshot, error)
	Logout(ctx context.Context) (status.Snapshot, error)
	SyncChats(ctx context.Context, mode string) (status.Snapshot, error)
	EnsureChatSynced(ctx context.Context, chatID string, limit int) (api.ChatSyncResult, error)
	ShowBrowserWindow(ctx context.Context) error
}

// Command represents a parsed command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}

// Execute runs cmd against r and returns the text to flash on success.
func Execute(ctx context.Context, r Relay, cmd Command) (string, error) {
	switch cmd.Name {
	case "start":
		snap, err := r.Start(ctx)
		if err != nil {
			return "", err
		}
		return "Relay " + string(snap.Status), nil
	case "stop":
		if _, err := r.Stop(ctx); err != nil {
			return "", err
		}
		return "Relay stopped", nil
	case "logout":
		if _, err := r.Logout(ctx); err != nil {
			return "", err
		}
		return "Logged out", nil
	case "sync":
		mode := ""
		if len(cmd.Args) > 0 {
			mode = cmd.Args[0]
		}
		snap, err := r.SyncChats(ctx, mode)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Synced %d chats via %s", snap.ChatCount, snap.SyncPath), nil
	case "chat":
		if len(cmd.Args) == 0 {
			return "", fmt.Errorf("usage: chat <id> [limit]")
		}
		limit := 0
		if len(cmd.Args) > 1 {
			n, err := strconv.Atoi(cmd.Args[1])
			if err != nil || n < 0 {
				return "", fmt.Errorf("invalid limit %q", cmd.Args[1])
			}
			limit = n
		}
		res, err := r.EnsureChatSynced(ctx, cmd.Args[0], limit)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Synced %d entries for %s", res.Count, res.ChatID), nil
	case "show", "show-browser":
		if err := r.ShowBrowserWindow(ctx); err != nil {
			return "", err
		}
		return "Relay window shown", nil
	case "":
		return "", fmt.Errorf("empty command")
	default:
		return "", fmt.Errorf("unknown command %q", cmd.Name)
	}
}
