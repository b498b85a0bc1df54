package api

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// MoveCounter counts persisted moves by outcome.
type MoveCounter struct {
	total *prometheus.CounterVec
}

// NewMoveCounter registers the board_moves_total counter with reg.
func NewMoveCounter(reg prometheus.Registerer) (*MoveCounter, error) {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "board_moves_total",
		Help: "Cross-column task moves persisted by board sessions, by outcome.",
	}, []string{"outcome"})
	if err := reg.Register(total); err != nil {
		return nil, err
	}
	return &MoveCounter{total: total}, nil
}

func (m *MoveCounter) inc(outcome string) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(outcome).Inc()
}

// sessionNotifier pushes move outcomes to the session's stream clients.
type sessionNotifier struct {
	broker *streamBroker
	moves  *MoveCounter
	log    *log.Entry
}

func (n sessionNotifier) NotifySuccess(_ context.Context, message string) {
	n.moves.inc("success")
	n.broker.publish(eventNotice, notice{Level: "success", Message: message})
}

func (n sessionNotifier) NotifyFailure(_ context.Context, message string, err error) {
	n.moves.inc("failure")
	nt := notice{Level: "error", Message: message}
	if err != nil {
		nt.Error = err.Error()
	}
	n.log.WithError(err).Warn(message)
	n.broker.publish(eventNotice, nt)
}
