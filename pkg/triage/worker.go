package triage

import (
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Worker consumes fetch triggers sequentially. It is the only goroutine that
// ever replaces the session batch, which is what keeps handle assignment
// atomic with respect to the chat command loop.
type Worker struct {
	logger *log.Logger
	nc     *nats.Conn
	triage *Service
}

func NewWorker(logger *log.Logger, nc *nats.Conn, triage *Service) *Worker {
	return &Worker{logger: logger, nc: nc, triage: triage}
}

// triggerBacklog sizes the subscription channel. NATS drops triggers beyond
// it; that is acceptable here because every trigger requests the same full
// refresh, so a dropped one is subsumed by any trigger still queued.
const triggerBacklog = 64

// Run blocks until ctx is done. Triggers that arrive while a run is in
// flight queue up on the subscription channel; a superseded run's batch is
// simply overwritten by the next one.
func (w *Worker) Run(ctx context.Context) error {
	ch := make(chan *nats.Msg, triggerBacklog)
	sub, err := w.nc.ChanSubscribe(FetchSubject, ch)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("Failed to unsubscribe fetch triggers", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			var trigger FetchTrigger
			if err := json.Unmarshal(msg.Data, &trigger); err != nil {
				w.logger.Error("Dropping malformed fetch trigger", "error", err)
				continue
			}

			logger := w.logger.With("run_id", trigger.RunID, "source", trigger.Source)
			logger.Info("Starting fetch run", "since", trigger.Since)

			n, err := w.triage.Run(ctx, trigger.Since)
			if err != nil {
				// Already reported to the operator chat by the service.
				logger.Error("Fetch run failed", "error", err)
				continue
			}
			logger.Info("Fetch run finished", "batch_size", n)
		}
	}
}
