package scraper

import (
	"context"
	"time"
)

// PollOutcome is the terminal state of a bounded poll.
type PollOutcome int

const (
	PollDone PollOutcome = iota
	PollTimedOut
	PollErrored
)

func (o PollOutcome) String() string {
	switch o {
	case PollDone:
		return "done"
	case PollTimedOut:
		return "timed-out"
	default:
		return "errored"
	}
}

// poll calls check every interval until it returns true, the timeout lapses,
// or the context is cancelled. Errors from check are swallowed and the poll
// keeps going; only context cancellation ends it as PollErrored. This models
// the "is generation finished" and "has the user logged in" waits without
// needing a real browser.
func poll(ctx context.Context, interval, timeout time.Duration, check func(context.Context) (bool, error)) (PollOutcome, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err == nil && done {
			return PollDone, nil
		}
		if time.Now().After(deadline) {
			return PollTimedOut, nil
		}

		select {
		case <-ctx.Done():
			return PollErrored, ctx.Err()
		case <-ticker.C:
		}
	}
}
