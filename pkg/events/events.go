// Package events fans job and linking notifications out to in-process
// subscribers (the SSE stream) and to external sinks such as MQTT.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/linkhub/pkg/device"
	"github.com/urmzd/linkhub/pkg/jobs"
)

// Type names an event.
type Type string

// Event types
const (
	TypeJobCompleted     Type = "job_completed"
	TypeLinkingCompleted Type = "linking_completed"
)

// Event is one notification. Exactly one payload field is set.
type Event struct {
	Type      Type                     `json:"type"`
	Timestamp time.Time                `json:"timestamp"`
	Job       *jobs.Result             `json:"job,omitempty"`
	Linking   *device.LinkingCompleted `json:"linking,omitempty"`
}

// JobCompleted wraps a finished job.
func JobCompleted(r jobs.Result) Event {
	return Event{Type: TypeJobCompleted, Timestamp: r.CompletedAt, Job: &r}
}

// LinkingCompleted wraps a linking exchange.
func LinkingCompleted(l device.LinkingCompleted) Event {
	ts := l.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Event{Type: TypeLinkingCompleted, Timestamp: ts, Linking: &l}
}

// Sink receives every published event.
type Sink interface {
	Publish(evt Event) error
}

// Broker delivers events to subscribers without blocking the publisher; a
// subscriber that falls behind misses events.
type Broker struct {
	mu          sync.Mutex
	subscribers []chan Event
	sinks       []Sink
}

func NewBroker() *Broker {
	return &Broker{}
}

// AddSink registers an external sink.
func (b *Broker) AddSink(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, s)
}

func (b *Broker) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish delivers evt to every subscriber and sink. Sink errors are logged.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.Unlock()

	for _, s := range sinks {
		if err := s.Publish(evt); err != nil {
			log.Warn().Err(err).Str("type", string(evt.Type)).Msg("Failed to publish event to sink")
		}
	}
}

// ObserveJobs returns a scheduler observer that publishes job completions.
func (b *Broker) ObserveJobs() func(jobs.Result) {
	return func(r jobs.Result) {
		b.Publish(JobCompleted(r))
	}
}

// Forward publishes linking events from src until ctx is done.
func (b *Broker) Forward(ctx context.Context, src device.EventSubscriber) {
	ch := src.Subscribe()
	go func() {
		defer src.Unsubscribe(ch)
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				b.Publish(LinkingCompleted(evt))
			case <-ctx.Done():
				return
			}
		}
	}()
}
