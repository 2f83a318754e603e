// Package events fans out committed lifecycle transitions to subscribers.
//
// The core publishes after a transition has been committed to the store, never
// before. Transport (Kafka, sockets, webhooks) is a collaborator behind the
// Publisher interface; the state machine knows nothing about delivery.
package events

import (
	"context"
	"sync"
	"time"
)

// TransitionType names a committed lifecycle transition.
type TransitionType string

const (
	TransitionSubmitted  TransitionType = "submitted"
	TransitionVerified   TransitionType = "verified"
	TransitionRejected   TransitionType = "rejected"
	TransitionChallenged TransitionType = "challenged"
	TransitionRetried    TransitionType = "retried"
	TransitionMinted     TransitionType = "minted"
)

// TransitionEvent is the payload published after each committed transition.
type TransitionEvent struct {
	VerificationID string         `json:"verification_id"`
	Transition     TransitionType `json:"transition"`
	AttestationID  string         `json:"attestation_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Publisher delivers transition events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, event TransitionEvent) error
}

// InMemory collects events for tests and single-process development.
type InMemory struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (p *InMemory) Publish(_ context.Context, event TransitionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (p *InMemory) Events() []TransitionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TransitionEvent(nil), p.events...)
}
