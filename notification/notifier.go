package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Notifier delivers support access events to one backend.
type Notifier interface {
	Notify(ctx context.Context, event *Event) error
}

// MultiNotifier delivers each event to several backends at once, so a slow
// webhook retry does not hold up the SNS publish.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a MultiNotifier. Nil notifiers are dropped.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	return &MultiNotifier{notifiers: filtered}
}

// Notify waits for every backend and joins their errors in backend order.
func (m *MultiNotifier) Notify(ctx context.Context, event *Event) error {
	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, n := range m.notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			if err := n.Notify(ctx, event); err != nil {
				errs[i] = fmt.Errorf("notifier %d: %w", i, err)
			}
		}(i, n)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// NoopNotifier discards events. NotifyStore uses it when no backend is configured.
type NoopNotifier struct{}

// Notify does nothing.
func (n *NoopNotifier) Notify(_ context.Context, _ *Event) error {
	return nil
}
