package app

import (
	"sync"

	"cosmossdk.io/log"
	abci "github.com/cometbft/cometbft/abci/types"
)

// Event is a committed ABCI event in the form pushed to stream subscribers.
type Event struct {
	Height     int64             `json:"height"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventBus fans committed events out to subscribers. A subscriber that falls
// behind loses events rather than stalling Commit.
type EventBus struct {
	logger log.Logger

	mu   sync.RWMutex
	next int
	subs map[int]chan Event
}

func NewEventBus(logger log.Logger) *EventBus {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &EventBus{
		logger: logger.With("module", "eventbus"),
		subs:   map[int]chan Event{},
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called to
// release it; it closes the channel.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *EventBus) Publish(height int64, events []abci.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ev := range events {
		out := Event{Height: height, Type: ev.Type, Attributes: map[string]string{}}
		for _, a := range ev.Attributes {
			out.Attributes[a.Key] = a.Value
		}
		for id, ch := range b.subs {
			select {
			case ch <- out:
			default:
				b.logger.Debug("dropping event for slow subscriber", "subscriber", id, "type", ev.Type)
			}
		}
	}
}
