package server

import (
	"encoding/json"
	"sync"

	"github.com/lasersoldier/Turtle-Soup/internal/engine"
)

// Broker is an in-process pub/sub for SSE events, keyed by game.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the given game key.
func (b *Broker) Subscribe(key string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan []byte]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the game's subscribers.
func (b *Broker) Unsubscribe(key string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[key], ch)
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
	b.mu.Unlock()
}

// Publish implements engine.Publisher.
func (b *Broker) Publish(ev engine.Event) {
	data, _ := json.Marshal(ev)
	key := ev.Key()
	b.mu.RLock()
	for ch := range b.subs[key] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
