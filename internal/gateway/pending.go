package gateway

import (
	"context"
	"errors"
	"time"
)

var errNoProvider = errors.New("no provider configured")

// Pending is the caller's handle on a queued request. It settles exactly once.
type Pending struct {
	prompt  string
	created time.Time
	cfg     callConfig

	done chan struct{}
	text string
	err  error
}

func newPending(prompt string, created time.Time, cfg callConfig) *Pending {
	return &Pending{prompt: prompt, created: created, cfg: cfg, done: make(chan struct{})}
}

// Created returns the enqueue time.
func (p *Pending) Created() time.Time {
	return p.created
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request settles or ctx ends. Giving up does not
// cancel the request; it still runs in queue order.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.text, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Pending) settle(text string, err error) {
	p.text, p.err = text, err
	close(p.done)
}
