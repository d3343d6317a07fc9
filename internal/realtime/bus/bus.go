package bus

import (
	"context"
	"sync"

	"github.com/yungbote/visiblee-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.JobEvent) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.JobEvent)) error
	Close() error
}

// MemoryBus delivers events in-process. It backs tests and single-process
// development runs without Redis.
type MemoryBus struct {
	mu        sync.RWMutex
	listeners []func(realtime.JobEvent)
	published []realtime.JobEvent
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(_ context.Context, ev realtime.JobEvent) error {
	b.mu.Lock()
	b.published = append(b.published, ev)
	listeners := append([]func(realtime.JobEvent){}, b.listeners...)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(_ context.Context, onEvent func(ev realtime.JobEvent)) error {
	b.mu.Lock()
	b.listeners = append(b.listeners, onEvent)
	b.mu.Unlock()
	return nil
}

// Published returns a copy of every event seen so far.
func (b *MemoryBus) Published() []realtime.JobEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]realtime.JobEvent(nil), b.published...)
}

func (b *MemoryBus) Close() error { return nil }
