// Package bus is the in-process message channel between platform watchers,
// the orchestrator and the transports. It carries the same protocol the
// browser extension contexts exchange, but makes the command/query split
// explicit: Publish is fire-and-forget, Request blocks for a typed reply.
package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("bus: closed")

// Delivery is one received message. Queries carry a reply slot; commands do
// not.
type Delivery struct {
	ID  string
	Msg any

	reply chan any
}

// NeedsReply reports whether the sender is blocked on a reply.
func (d Delivery) NeedsReply() bool { return d.reply != nil }

// Reply completes a query. Replying to a command is a no-op.
func (d Delivery) Reply(v any) {
	if d.reply == nil {
		return
	}
	d.reply <- v
	close(d.reply)
}

type Bus struct {
	inbox chan Delivery
	done  chan struct{}
}

func New(buffer int) *Bus {
	return &Bus{
		inbox: make(chan Delivery, buffer),
		done:  make(chan struct{}),
	}
}

// Publish sends a command. It never waits for handling, only for inbox
// space.
func (b *Bus) Publish(ctx context.Context, msg any) error {
	select {
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case b.inbox <- Delivery{ID: uuid.NewString(), Msg: msg}:
		return nil
	}
}

// Request sends a query and waits for its reply.
func (b *Bus) Request(ctx context.Context, msg any) (any, error) {
	reply := make(chan any, 1)
	select {
	case <-b.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case b.inbox <- Delivery{ID: uuid.NewString(), Msg: msg, reply: reply}:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case v, ok := <-reply:
		if !ok {
			return nil, fmt.Errorf("bus: query dropped without reply")
		}
		return v, nil
	}
}

// Receive exposes the consumer side. A single consumer owns the channel;
// that consumer is the serialization point for everything the bus carries.
func (b *Bus) Receive() <-chan Delivery {
	return b.inbox
}

func (b *Bus) Close() {
	close(b.done)
}
