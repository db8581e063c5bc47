package messaging

import (
	"fmt"
	"sync"
)

type subscription struct {
	ch     chan<- Message
	topics map[string]struct{}
}

func (s subscription) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// SimpleBroker implements the Broker interface
// subscribers maps subscriber ids to their channel and topic filter
type SimpleBroker struct {
	subscribers map[string]subscription
	mu          sync.RWMutex
}

// NewBroker creates a new message broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]subscription),
	}
}

// Publish delivers a message to the addressed subscribers that want its topic.
// Delivery never blocks: a full subscriber channel is reported as an error
// after the remaining subscribers have been served.
func (b *SimpleBroker) Publish(msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// If no recipients specified, broadcast to all subscribers
	recipients := msg.To
	if len(recipients) == 0 {
		for id := range b.subscribers {
			if id != msg.From {
				recipients = append(recipients, id)
			}
		}
	}

	var full []string
	for _, id := range recipients {
		sub, ok := b.subscribers[id]
		if !ok || !sub.wants(msg.Topic) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			full = append(full, id)
		}
	}

	if len(full) > 0 {
		return fmt.Errorf("dropped %s message for full subscribers %v", msg.Topic, full)
	}
	return nil
}

func (b *SimpleBroker) Subscribe(id string, ch chan<- Message, topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", id)
	}

	sub := subscription{ch: ch, topics: make(map[string]struct{}, len(topics))}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}
	b.subscribers[id] = sub
	return nil
}

func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", id)
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]subscription)
}
