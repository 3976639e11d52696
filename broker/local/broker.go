// Package local is the in-process broker used for single-node
// deployments and tests. Publishes are delivered synchronously to every
// subscriber, the publishing node's included, which exercises the same
// origin filtering the networked brokers rely on.
package local

import (
	"context"
	"sync"

	"collabdoc-server/broker"
)

type Broker struct {
	mu       sync.RWMutex
	handlers map[string]broker.Handler // documentID -> handler
}

func NewBroker() *Broker {
	return &Broker{handlers: make(map[string]broker.Handler)}
}

func (b *Broker) PublishChange(ctx context.Context, ev broker.ChangeEvent) error {
	b.mu.RLock()
	h, ok := b.handlers[ev.DocumentID]
	b.mu.RUnlock()
	if ok {
		h.HandleChange(ev)
	}
	return nil
}

func (b *Broker) PublishCursor(ctx context.Context, ev broker.CursorEvent) error {
	b.mu.RLock()
	h, ok := b.handlers[ev.DocumentID]
	b.mu.RUnlock()
	if ok {
		h.HandleCursor(ev)
	}
	return nil
}

func (b *Broker) Subscribe(documentID string, h broker.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[documentID] = h
	return nil
}

func (b *Broker) Unsubscribe(documentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, documentID)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string]broker.Handler)
	return nil
}
