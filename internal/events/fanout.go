package events

import (
	"context"
	"errors"
)

// Fanout publishes every message to each of its publishers in order. All
// publishers are attempted; their errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic string, messages ...Message) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, messages...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
