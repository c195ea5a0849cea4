// Package location defines the raw fix stream the engine observes: a
// cancellable subscription that guarantees no delivery after Stop.
package location

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPermissionDenied is returned when the location provider refuses to
// start observation. It is a terminal condition for starting tracking,
// distinct from transient signal loss during an active run.
var ErrPermissionDenied = errors.New("location permission denied")

// Fix is one raw reading from the location provider, before filtering.
// Altitude and Speed may be absent.
type Fix struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Accuracy  float64  `json:"accuracy"`
	Speed     *float64 `json:"speed,omitempty"` // meters per second
	Timestamp int64    `json:"timestamp"`       // epoch milliseconds
}

// Handler consumes fixes. Handlers must not block.
type Handler func(Fix)

// Subscription is a cancellation token. After Stop returns, the handler is
// never invoked again, even for publishes already in flight.
type Subscription interface {
	Stop()
}

// Source is a stream of location fixes.
type Source interface {
	Subscribe(h Handler) (Subscription, error)
}

// PushSource is a Source fed by explicit Publish calls, e.g. from an HTTP
// ingest endpoint. It supports a single subscriber; subscribing again
// invalidates the previous subscription.
type PushSource struct {
	mu  sync.Mutex
	sub *pushSub
}

// NewPushSource returns an empty PushSource.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Subscribe registers the handler, cancelling any previous subscriber.
func (s *PushSource) Subscribe(h Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		s.sub.stopped = true
	}
	s.sub = &pushSub{src: s, h: h}
	return s.sub, nil
}

// Publish delivers a fix to the current subscriber, if any. Delivery happens
// under the source lock so a concurrent Stop strictly orders before or after
// the handler call — never during.
func (s *PushSource) Publish(f Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil || s.sub.stopped {
		return
	}
	s.sub.h(f)
}

type pushSub struct {
	src     *PushSource
	h       Handler
	stopped bool
}

func (p *pushSub) Stop() {
	p.src.mu.Lock()
	defer p.src.mu.Unlock()
	p.stopped = true
	if p.src.sub == p {
		p.src.sub = nil
	}
}

// Denied returns a Source whose Subscribe always fails with
// ErrPermissionDenied and the given human-readable reason.
func Denied(reason string) Source {
	return deniedSource{reason: reason}
}

type deniedSource struct {
	reason string
}

func (d deniedSource) Subscribe(Handler) (Subscription, error) {
	return nil, fmt.Errorf("%s: %w", d.reason, ErrPermissionDenied)
}
