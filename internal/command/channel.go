package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEmpty is returned by Dequeue when no command arrived before the timeout.
var ErrEmpty = errors.New("no command pending")

// Channel is an unbounded FIFO of commands. Any number of goroutines may
// Enqueue; exactly one consumer may Dequeue.
type Channel struct {
	mu    sync.Mutex
	items []Command
	ready chan struct{}
}

// NewChannel constructs an empty Channel.
func NewChannel() *Channel {
	return &Channel{ready: make(chan struct{}, 1)}
}

// Enqueue appends cmd and wakes the consumer. It never blocks.
func (c *Channel) Enqueue(cmd Command) {
	c.mu.Lock()
	c.items = append(c.items, cmd)
	c.mu.Unlock()
	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Dequeue pops the oldest command. It waits up to timeout for one to arrive;
// a timeout <= 0 waits indefinitely. ErrEmpty is returned when the wait
// elapses and the wrapped context error when ctx ends first.
func (c *Channel) Dequeue(ctx context.Context, timeout time.Duration) (Command, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		if cmd, ok := c.pop(); ok {
			return cmd, nil
		}
		select {
		case <-c.ready:
		case <-expired:
			if cmd, ok := c.pop(); ok {
				return cmd, nil
			}
			return Command{}, ErrEmpty
		case <-ctx.Done():
			return Command{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		}
	}
}

// Len reports the number of pending commands.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Channel) pop() (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return Command{}, false
	}
	cmd := c.items[0]
	c.items[0] = Command{}
	c.items = c.items[1:]
	if len(c.items) == 0 {
		c.items = nil
	}
	return cmd, true
}
