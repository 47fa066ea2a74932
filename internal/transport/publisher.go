package transport

import (
	"errors"
	"fmt"

	"github.com/banshee-data/simbridge/internal/msgs"
)

// Publisher hands a message to a sink. Implementations must be done with msg
// (or have copied it) when Publish returns; callers reuse their messages.
type Publisher interface {
	Publish(topic string, msg msgs.Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(topic string, msg msgs.Message) error

func (f PublisherFunc) Publish(topic string, msg msgs.Message) error {
	return f(topic, msg)
}

// MultiPublisher publishes to each sink in order. Every sink is tried; the
// returned error joins the failures.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(topic string, msg msgs.Message) error {
	var errs []error
	for i, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(topic, msg); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
