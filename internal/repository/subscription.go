package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-backend/internal/document"
)

// Event is one push of a subscription: the current document, or the error that ended the stream.
type Event struct {
	Game *document.Game
	Err  error
}

// Subscription is a cancelable stream of game snapshots. The first event is the state at subscribe
// time; Events is closed once the stream ends.
type Subscription struct {
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// newSubscription starts produce in its own goroutine with a context canceled by Close.
func newSubscription(ctx context.Context, produce func(ctx context.Context, sub *Subscription)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.events)

		produce(ctx, sub)
	}()

	return sub
}

func (that *Subscription) Events() <-chan Event {
	return that.events
}

// Close detaches the subscription and waits for its goroutine to stop.
func (that *Subscription) Close() {
	that.once.Do(that.cancel)
	<-that.done
}

// send delivers event unless the subscription is closed first.
func (that *Subscription) send(ctx context.Context, event Event) bool {
	select {
	case that.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
