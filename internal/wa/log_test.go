package wa

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerBridge(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewLogger(zap.New(core)).Sub("client")

	l.Infof("connected to %s", "server")
	l.Warnf("retrying")
	l.Debugf("frame %d", 7)
	l.Errorf("failed")

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].Message != "connected to server" || entries[0].LoggerName != "client" {
		t.Errorf("entry = %+v", entries[0])
	}
	levels := []zapcore.Level{zap.InfoLevel, zap.WarnLevel, zap.DebugLevel, zap.ErrorLevel}
	for i, want := range levels {
		if entries[i].Level != want {
			t.Errorf("entry %d level = %s, want %s", i, entries[i].Level, want)
		}
	}
}

func TestOpener(t *testing.T) {
	tests := []struct {
		viewer, goos string
		name         string
		args         int
	}{
		{"", "darwin", "open", 0},
		{"", "linux", "xdg-open", 0},
		{"", "windows", "cmd", 3},
		{"/usr/bin/feh", "linux", "/usr/bin/feh", 0},
	}
	for _, tt := range tests {
		name, args := opener(tt.viewer, tt.goos)
		if name != tt.name || len(args) != tt.args {
			t.Errorf("opener(%q, %q) = %s %v", tt.viewer, tt.goos, name, args)
		}
	}
}
