package triage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// FetchSubject carries fetch triggers from the HTTP front door and the chat
// command router to the single triage worker.
const FetchSubject = "mailroom.triggers.fetch"

type FetchTrigger struct {
	Since  time.Duration `json:"since"`
	RunID  string        `json:"run_id"`
	Source string        `json:"source"`
}

// Bus publishes fetch triggers onto NATS. Publishing never runs the
// pipeline on the caller's goroutine.
type Bus struct {
	logger *log.Logger
	nc     *nats.Conn
}

func NewBus(logger *log.Logger, nc *nats.Conn) *Bus {
	return &Bus{logger: logger, nc: nc}
}

// PublishFetch enqueues one fetch-and-notify run and returns its run id.
func (b *Bus) PublishFetch(since time.Duration, source string) (string, error) {
	trigger := FetchTrigger{
		Since:  since,
		RunID:  uuid.NewString(),
		Source: source,
	}
	payload, err := json.Marshal(trigger)
	if err != nil {
		return "", fmt.Errorf("marshal fetch trigger: %w", err)
	}
	if err := b.nc.Publish(FetchSubject, payload); err != nil {
		return "", fmt.Errorf("publish fetch trigger: %w", err)
	}
	b.logger.Info("Published fetch trigger", "run_id", trigger.RunID, "source", source, "since", since)
	return trigger.RunID, nil
}
