package ui

import (
	"errors"
	"testing"
	"time"
)

func TestFlashExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	if f.Current() != nil {
		t.Fatal("empty model returned a message")
	}

	f.Info("Relay stopped")
	if m := f.Current(); m == nil || m.Text != "Relay stopped" || m.Level != FlashInfo {
		t.Fatalf("Current() = %+v", m)
	}

	now = now.Add(6 * time.Second)
	if f.Current() != nil {
		t.Error("info message outlived its ttl")
	}

	f.Err(errors.New("relay is not running"))
	now = now.Add(6 * time.Second)
	if m := f.Current(); m == nil || m.Level != FlashErr {
		t.Errorf("error message expired early: %+v", m)
	}
}
