// Package natsb fans events out across nodes over NATS subjects. Redis
// channel names use colons; NATS subjects are dot-separated, so topics
// are rewritten (doc:{id}:changes -> doc.{id}.changes).
package natsb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"collabdoc-server/broker"
)

type subscriptions struct {
	changes *nats.Subscription
	cursors *nats.Subscription
}

type Broker struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[string]*subscriptions
}

func NewBroker(url string) (*Broker, error) {
	conn, err := nats.Connect(url,
		nats.Name("collabdoc-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Broker{conn: conn, subs: make(map[string]*subscriptions)}, nil
}

func changesSubject(documentID string) string { return fmt.Sprintf("doc.%s.changes", documentID) }
func cursorsSubject(documentID string) string { return fmt.Sprintf("doc.%s.cursors", documentID) }

func (b *Broker) PublishChange(ctx context.Context, ev broker.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.conn.Publish(changesSubject(ev.DocumentID), payload)
}

func (b *Broker) PublishCursor(ctx context.Context, ev broker.CursorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.conn.Publish(cursorsSubject(ev.DocumentID), payload)
}

func (b *Broker) Subscribe(documentID string, h broker.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[documentID]; ok {
		return nil
	}

	changes, err := b.conn.Subscribe(changesSubject(documentID), func(msg *nats.Msg) {
		var ev broker.ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logrus.WithError(err).WithField("subject", msg.Subject).Warn("malformed change event, dropping")
			return
		}
		h.HandleChange(ev)
	})
	if err != nil {
		return err
	}

	cursors, err := b.conn.Subscribe(cursorsSubject(documentID), func(msg *nats.Msg) {
		var ev broker.CursorEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logrus.WithError(err).WithField("subject", msg.Subject).Warn("malformed cursor event, dropping")
			return
		}
		h.HandleCursor(ev)
	})
	if err != nil {
		_ = changes.Unsubscribe()
		return err
	}

	b.subs[documentID] = &subscriptions{changes: changes, cursors: cursors}
	return nil
}

func (b *Broker) Unsubscribe(documentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[documentID]; ok {
		if err := subs.changes.Unsubscribe(); err != nil {
			logrus.WithError(err).WithField("document_id", documentID).Warn("failed to unsubscribe changes")
		}
		if err := subs.cursors.Unsubscribe(); err != nil {
			logrus.WithError(err).WithField("document_id", documentID).Warn("failed to unsubscribe cursors")
		}
		delete(b.subs, documentID)
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	b.subs = make(map[string]*subscriptions)
	b.mu.Unlock()
	b.conn.Close()
	return nil
}
