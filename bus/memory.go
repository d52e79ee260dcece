package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("bus closed")

type memorySub struct {
	ch     chan Message
	done   <-chan struct{}
	events []string
}

//MemoryBus is an in-process Bus. Publish blocks until every live subscriber interested in
//the event has the message.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]*memorySub
	nextID int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]*memorySub)}
}

func (b *MemoryBus) Publish(ctx context.Context, message Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, sub := range b.subs[message.Channel] {
		if !message.Matches(sub.events) {
			continue
		}
		select {
		case sub.ch <- message:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, events ...string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	id := b.nextID
	b.nextID++
	sub := &memorySub{ch: make(chan Message, 64), done: ctx.Done(), events: events}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]*memorySub)
	}
	b.subs[channel][id] = sub

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[channel][id]; ok {
			delete(b.subs[channel], id)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subs {
		for id, sub := range subs {
			close(sub.ch)
			delete(subs, id)
		}
		delete(b.subs, channel)
	}
	return nil
}
