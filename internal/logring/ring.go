// Package logring keeps the most recent relay log lines and fans new ones
// out to followers.
package logring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/wprelay/internal/bus"
)

// DefaultSize is the number of lines kept when no size is given.
const DefaultSize = 400

// Line is one relay log line.
type Line struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Ring buffers log lines published on bus.KindLog.
type Ring struct {
	size int

	mu        sync.Mutex
	lines     []Line
	followers map[int]chan Line
	next      int
}

// New creates a ring holding up to size lines.
func New(size int) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	return &Ring{size: size, followers: make(map[int]chan Line)}
}

// Run copies log events from b into the ring until ctx is done.
func (r *Ring) Run(ctx context.Context, b *bus.Bus) {
	ch, unsub := b.Subscribe(bus.KindLog, 256)
	defer unsub()
	for {
		select {
		case evt := <-ch:
			r.Push(Line{ID: evt.ID, Time: evt.Timestamp, Text: fmt.Sprint(evt.Payload)})
		case <-ctx.Done():
			return
		}
	}
}

// Push appends a line, dropping the oldest past the ring size. Newlines are
// folded into spaces.
func (r *Ring) Push(l Line) {
	l.Text = strings.ReplaceAll(l.Text, "\n", " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, l)
	if over := len(r.lines) - r.size; over > 0 {
		r.lines = append(r.lines[:0:0], r.lines[over:]...)
	}
	for _, ch := range r.followers {
		select {
		case ch <- l:
		default:
		}
	}
}

// Lines returns the buffered lines, oldest first.
func (r *Ring) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line(nil), r.lines...)
}

// Clear drops the buffered lines. Followers stay attached.
func (r *Ring) Clear() {
	r.mu.Lock()
	r.lines = nil
	r.mu.Unlock()
}

// Follow returns the buffered lines and a channel receiving every later
// line. Nothing is lost or repeated between the two. A follower that falls
// more than buf lines behind misses lines.
func (r *Ring) Follow(buf int) ([]Line, <-chan Line, func()) {
	ch := make(chan Line, buf)

	r.mu.Lock()
	id := r.next
	r.next++
	r.followers[id] = ch
	backlog := append([]Line(nil), r.lines...)
	r.mu.Unlock()

	var once sync.Once
	return backlog, ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.followers, id)
			r.mu.Unlock()
		})
	}
}
