// Package poller tracks a user's in-flight generation jobs from the client side.
//
// A Poller starts idle. Resume asks the server once for the active jobs; when
// anything is running the poller becomes active and re-queries on a fixed
// interval until the set is empty. Jobs the client started itself use Begin
// and Settle directly since the caller already holds the result. Every Begin,
// including the one Resume makes, holds the poller active until its matching
// Settle; subscribers are notified when the last one settles.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/resume-topics/internal/logger"
	"github.com/jonathan/resume-topics/internal/types"
)

// DefaultInterval is the delay between status queries while active
const DefaultInterval = 2 * time.Second

// State is the lifecycle position of a Poller
type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StateSettled State = "settled"
)

// Fetcher returns the current set of active jobs
type Fetcher interface {
	Fetch(ctx context.Context) (types.ActiveGenerations, error)
}

// Option configures a Poller
type Option func(*Poller)

// WithInterval sets the polling interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger used for fetch failures
func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) { p.log = logger.OrNop(l) }
}

// WithObserver registers a callback invoked with every snapshot fetched
func WithObserver(fn func(types.ActiveGenerations)) Option {
	return func(p *Poller) { p.observer = fn }
}

type subscriber struct {
	id int
	fn func()
}

// Poller follows active generations until they settle
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	log      *logger.Logger
	observer func(types.ActiveGenerations)

	mu     sync.Mutex
	state  State
	active int
	subs   []subscriber
	nextID int
	last   types.ActiveGenerations
}

// New creates an idle Poller
func New(fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		interval: DefaultInterval,
		log:      logger.Nop(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle state
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Last returns the most recently fetched snapshot
func (p *Poller) Last() types.ActiveGenerations {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Subscribe registers fn to run on each settlement. The returned func removes it.
func (p *Poller) Subscribe(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.subs = append(p.subs, subscriber{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Begin marks a job as running. Each Begin must be paired with one Settle.
func (p *Poller) Begin() {
	p.mu.Lock()
	p.active++
	p.state = StateActive
	p.mu.Unlock()
}

// Settle releases one Begin. The last release moves the poller to settled and
// notifies subscribers; a Settle without an outstanding Begin does nothing.
func (p *Poller) Settle() {
	for _, s := range p.release(StateSettled) {
		s.fn()
	}
}

// release drops one active reference. When none remain the poller moves to next and the
// subscribers to notify are returned; otherwise release returns nil.
func (p *Poller) release(next State) []subscriber {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == 0 {
		return nil
	}
	p.active--
	if p.active > 0 {
		return nil
	}
	p.state = next
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	return subs
}

// Resume queries the server once and, when jobs are running, polls until they finish.
// It returns the initial query's error, or ctx.Err() if cancelled while active. A cancelled
// Resume gives up its hold without notifying; if nothing else is running the poller goes
// back to idle. Errors on later queries are logged and retried on the next tick.
func (p *Poller) Resume(ctx context.Context) error {
	snap, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("initial status query failed: %w", err)
	}
	p.observe(snap)
	if snap.Empty() {
		return nil
	}

	p.Begin()
	p.log.Info("generations in progress, polling",
		"generating_all", snap.GeneratingAllExperienceIDs,
		"regenerating", snap.RegeneratingTopicIDs,
		"interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.release(StateIdle)
			return ctx.Err()
		case <-ticker.C:
		}

		snap, err := p.fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.release(StateIdle)
				return ctx.Err()
			}
			p.log.Warn("status query failed, retrying", "error", err)
			continue
		}
		p.observe(snap)
		if snap.Empty() {
			p.Settle()
			return nil
		}
	}
}

func (p *Poller) observe(snap types.ActiveGenerations) {
	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()
	if p.observer != nil {
		p.observer(snap)
	}
}
