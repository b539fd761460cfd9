// Package loop runs a task repeatedly until it decides to stop.
//
// It backs polling against the remote backend: each round inspects state
// and either breaks with a result or continues after an interval.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next is a task's verdict on whether the loop goes on.
type Next struct {
	// if not nil, breaks with error
	err error

	// if quit == true and err == nil, breaks without error
	quit bool

	// otherwise, continue loop with interval.
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue lets the loop run the task once more, after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err may be nil for a normal stop.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task is one round of the loop. It receives the previous round's value
// and returns the next one, with the verdict.
type Task[T any] func(context.Context, T) (T, Next)

// Start runs task with init, then keeps re-running it with its own output
// as long as it returns Continue.
//
// The last value is always returned, also on error. When ctx is done, the
// loop breaks with ctx.Err(), before the task and between rounds.
func Start[T any](ctx context.Context, init T, task Task[T]) (T, error) {
	value := init

	for {
		select {
		case <-ctx.Done():
			return value, ctx.Err()
		default:
		}

		v, n := task(ctx, value)
		if n.err != nil {
			return v, n.err
		}
		if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}
