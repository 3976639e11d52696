// Package redisb fans events out across nodes over Redis pub/sub, one
// changes channel and one cursors channel per document.
package redisb

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"collabdoc-server/broker"
)

type Broker struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*redis.PubSub // documentID -> subscription
}

func NewBroker(addr, password string, db int) (*Broker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &Broker{client: client, subs: make(map[string]*redis.PubSub)}, nil
}

// NewBrokerFromClient shares an existing client with the TTL store.
func NewBrokerFromClient(client *redis.Client) *Broker {
	return &Broker{client: client, subs: make(map[string]*redis.PubSub)}
}

func (b *Broker) PublishChange(ctx context.Context, ev broker.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, broker.ChangesTopic(ev.DocumentID), payload).Err()
}

func (b *Broker) PublishCursor(ctx context.Context, ev broker.CursorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, broker.CursorsTopic(ev.DocumentID), payload).Err()
}

// Subscribe is idempotent per document: a second call while subscribed
// is a no-op.
func (b *Broker) Subscribe(documentID string, h broker.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[documentID]; ok {
		return nil
	}

	ctx := context.Background()
	changesTopic := broker.ChangesTopic(documentID)
	cursorsTopic := broker.CursorsTopic(documentID)
	pubsub := b.client.Subscribe(ctx, changesTopic, cursorsTopic)
	b.subs[documentID] = pubsub

	go func() {
		for msg := range pubsub.Channel() {
			switch msg.Channel {
			case changesTopic:
				var ev broker.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logrus.WithError(err).WithField("channel", msg.Channel).Warn("malformed change event, dropping")
					continue
				}
				h.HandleChange(ev)
			case cursorsTopic:
				var ev broker.CursorEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logrus.WithError(err).WithField("channel", msg.Channel).Warn("malformed cursor event, dropping")
					continue
				}
				h.HandleCursor(ev)
			}
		}
	}()

	return nil
}

func (b *Broker) Unsubscribe(documentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pubsub, ok := b.subs[documentID]; ok {
		if err := pubsub.Close(); err != nil {
			logrus.WithError(err).WithField("document_id", documentID).Warn("failed to close subscription")
		}
		delete(b.subs, documentID)
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	for documentID, pubsub := range b.subs {
		if err := pubsub.Close(); err != nil {
			logrus.WithError(err).WithField("document_id", documentID).Warn("failed to close subscription")
		}
	}
	b.subs = make(map[string]*redis.PubSub)
	b.mu.Unlock()
	return b.client.Close()
}
