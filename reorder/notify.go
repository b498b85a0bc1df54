package reorder

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Notifier surfaces the outcome of a persisted move to the user.
type Notifier interface {
	NotifySuccess(ctx context.Context, message string)
	NotifyFailure(ctx context.Context, message string, err error)
}

// LogNotifier reports move outcomes through a logrus entry.
type LogNotifier struct {
	Logger *log.Entry
}

func (n LogNotifier) NotifySuccess(_ context.Context, message string) {
	n.entry().Info(message)
}

func (n LogNotifier) NotifyFailure(_ context.Context, message string, err error) {
	n.entry().WithError(err).Error(message)
}

func (n LogNotifier) entry() *log.Entry {
	if n.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return n.Logger
}

type noopNotifier struct{}

func (noopNotifier) NotifySuccess(context.Context, string)        {}
func (noopNotifier) NotifyFailure(context.Context, string, error) {}
