package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback-based subscriptions to a channel for
// consumers that want a select loop instead of a handler.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			// Drop event if channel is full (non-blocking)
		}
	})
}
