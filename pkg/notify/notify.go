// Package notify delivers "new device on the network" alerts. Two channels are
// available: a JSON webhook POST and plain SMTP email; both can be active at
// the same time.
package notify

import (
	"context"
	"errors"
)

// Notifier sends one alert with a short subject and a preformatted body.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// MultiNotifier fans one alert out to every configured channel. Errors are
// collected so a failing channel does not silence the others.
type MultiNotifier struct {
	sinks []Notifier
}

func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	return &MultiNotifier{sinks: sinks}
}

// Empty tells whether no notification channel is configured at all.
func (m *MultiNotifier) Empty() bool {
	return len(m.sinks) == 0
}

func (m *MultiNotifier) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
