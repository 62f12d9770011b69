// Package bootstrap starts the in-process infrastructure the bot needs at
// launch: an embedded NATS server acting as the trigger bus.
package bootstrap

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// StartEmbeddedNATSServer runs a NATS server inside this process on a random
// local port. The bus never leaves the process; it only decouples the HTTP
// and chat trigger sources from the triage worker.
func StartEmbeddedNATSServer(logger *log.Logger) (*server.Server, error) {
	opts := &server.Options{
		Host: "127.0.0.1",
		Port: server.RANDOM_PORT,
	}

	s, err := server.NewServer(opts)
	if err != nil {
		return nil, err
	}

	go s.Start()

	if !s.ReadyForConnections(10 * time.Second) {
		return nil, errors.New("NATS server not ready in time")
	}

	logger.Info("Started embedded NATS server", "url", s.ClientURL())
	return s, nil
}

func NewNatsClient(s *server.Server) (*nats.Conn, error) {
	return nats.Connect(s.ClientURL())
}
