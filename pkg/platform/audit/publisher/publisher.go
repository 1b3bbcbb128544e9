// Package publisher fans audit events into a Store, synchronously or through
// a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "census/pkg/platform/audit"
	"census/pkg/platform/circuit"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the buffer is full.
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

const drainTimeout = 5 * time.Second

type Publisher struct {
	store    audit.Store
	fallback audit.Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
	now      func() time.Time
	onClose  func()

	// mu guards closed and sends on buffer against Close.
	mu        sync.RWMutex
	closed    bool
	buffer    chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer queues events in a buffer of size n instead of appending
// them inline.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithFallback sets the store events go to once the breaker has opened on the
// primary store.
func WithFallback(store audit.Store) Option {
	return func(p *Publisher) {
		p.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithOnClose registers fn to run after Close has drained the buffer.
func WithOnClose(fn func()) Option {
	return func(p *Publisher) {
		p.onClose = fn
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		breaker: circuit.New("audit"),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit fills in the id and timestamp when missing and hands the event to the
// store (sync) or the buffer (async).
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.buffer == nil {
		return p.write(ctx, event)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.buffer <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit event dropped", "action", event.Action, "import_id", event.ImportID)
		return ErrBufferFull
	}
}

// Close stops accepting events, waits for the buffer to drain and runs the
// WithOnClose hook. Emit returns ErrClosed afterwards.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.buffer != nil {
			close(p.buffer)
		}
		p.mu.Unlock()
		if p.buffer != nil {
			p.wg.Wait()
		}
		if p.onClose != nil {
			p.onClose()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := p.write(ctx, event); err != nil {
			p.logger.Error("audit event lost", "action", event.Action, "import_id", event.ImportID, "error", err)
		}
		cancel()
	}
}

func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	err := p.store.Append(ctx, event)
	if err == nil {
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.logger.InfoContext(ctx, "audit store recovered")
		}
		return nil
	}

	useFallback, change := p.breaker.RecordFailure()
	if change.Opened {
		p.logger.WarnContext(ctx, "audit store failing, circuit opened", "error", err)
	}
	if useFallback && p.fallback != nil {
		return p.fallback.Append(ctx, event)
	}
	return err
}
