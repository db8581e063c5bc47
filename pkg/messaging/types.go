package messaging

import (
	"time"
)

// Topics published by environment wrappers
const (
	TopicEpisodeEnd = "episode.end"
)

// Message is an event published on the broker
type Message struct {
	From      string    // id of the publishing handle
	To        []string  // subscriber ids (empty means broadcast)
	Topic     string    // event kind, e.g. TopicEpisodeEnd
	Content   any       // the event payload
	Timestamp time.Time // when the event was published
}

// Publisher can publish events
type Publisher interface {
	Publish(msg Message) error
}

// Broker routes events between publishers and subscribers
type Broker interface {
	Publisher
	// Subscribe registers ch to receive messages. With no topics the
	// subscriber receives every topic.
	Subscribe(id string, ch chan<- Message, topics ...string) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
