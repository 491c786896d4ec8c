// Package ingest writes live messages to the store in arrival order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/wprelay/internal/bus"
	"github.com/matheus3301/wprelay/internal/metrics"
	"github.com/matheus3301/wprelay/internal/normalize"
	"go.uber.org/zap"
)

// QueueSize is the number of live messages buffered ahead of the store.
const QueueSize = 256

// ErrNoChat is returned for messages without a conversation identifier.
var ErrNoChat = errors.New("message has no chat id")

// Appender persists one live entry.
type Appender interface {
	AppendMessage(ctx context.Context, chatID string, entry normalize.Entry, hints normalize.Hints) error
}

// Normalizer turns a raw message into an entry.
type Normalizer interface {
	Entry(raw normalize.Raw) normalize.Entry
}

// Ingested is the payload of bus.KindEntry events.
type Ingested struct {
	ChatID    string
	MessageID string
}

// Worker processes live messages on a single goroutine.
type Worker struct {
	store   Appender
	norm    Normalizer
	bus     *bus.Bus
	logger  *zap.Logger
	metrics *metrics.Metrics

	queue  chan normalize.Raw
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a worker. b and m may be nil.
func NewWorker(store Appender, norm Normalizer, b *bus.Bus, logger *zap.Logger, m *metrics.Metrics) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:   store,
		norm:    norm,
		bus:     b,
		logger:  logger,
		metrics: m,
		queue:   make(chan normalize.Raw, QueueSize),
	}
}

// Start begins draining the queue until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func(ctx context.Context, done chan struct{}) {
		defer close(done)
		for {
			select {
			case raw := <-w.queue:
				if ctx.Err() != nil {
					return
				}
				if err := w.Ingest(ctx, raw); err != nil {
					w.logger.Warn("failed to record incoming message", zap.Error(err))
				}
			case <-ctx.Done():
				return
			}
		}
	}(w.ctx, w.done)
}

// Submit queues raw for ingestion. It blocks while the queue is full, which
// holds back the client's event loop instead of dropping messages. It
// reports false once the worker has stopped.
func (w *Worker) Submit(raw normalize.Raw) bool {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return false
	}
	select {
	case w.queue <- raw:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop ends the worker and waits for the in-flight message. Queued
// messages are dropped.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Ingest normalizes and appends one message.
func (w *Worker) Ingest(ctx context.Context, raw normalize.Raw) error {
	chatID := normalize.MessageChatID(raw)
	if chatID == "" {
		return ErrNoChat
	}
	entry := w.norm.Entry(raw)
	isGroup := strings.HasSuffix(chatID, "@g.us")

	err := w.store.AppendMessage(ctx, chatID, entry, normalize.Hints{IsGroup: &isGroup})
	w.metrics.EntryIngested("live", 1, err)
	if err != nil {
		return fmt.Errorf("append message to %s: %w", chatID, err)
	}

	if w.bus != nil {
		evt := Ingested{ChatID: chatID}
		if entry.MessageID != nil {
			evt.MessageID = *entry.MessageID
		}
		w.bus.Emit(bus.KindEntry, evt)
	}
	return nil
}
