package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rentfold/allocation-engine/internal/model"
)

// AuditTrail writes allocation events through a background worker. Events
// are fire-and-forget: a full queue or a failed write is logged and
// dropped, never propagated into the allocation path.
type AuditTrail struct {
	store  Store
	events chan model.AllocationEvent
	done   chan struct{}
}

func NewAuditTrail(s Store) *AuditTrail {
	a := &AuditTrail{
		store:  s,
		events: make(chan model.AllocationEvent, 64),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AuditTrail) run() {
	defer close(a.done)
	for event := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.store.RecordEvent(ctx, event); err != nil {
			log.Error().Err(err).Str("kind", event.Kind).Msg("Failed to record allocation event")
		}
		cancel()
	}
}

// Record queues an event without blocking the caller.
func (a *AuditTrail) Record(event model.AllocationEvent) {
	select {
	case a.events <- event:
	default:
		log.Warn().Str("kind", event.Kind).Msg("Audit queue full, dropping event")
	}
}

// Close drains the queue and stops the worker.
func (a *AuditTrail) Close() {
	close(a.events)
	<-a.done
}
