package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/halcyondesk/mailroom/pkg/ai"
	"github.com/halcyondesk/mailroom/pkg/bootstrap"
	"github.com/halcyondesk/mailroom/pkg/bot"
	"github.com/halcyondesk/mailroom/pkg/config"
	"github.com/halcyondesk/mailroom/pkg/drafter"
	"github.com/halcyondesk/mailroom/pkg/graphmail"
	"github.com/halcyondesk/mailroom/pkg/msauth"
	"github.com/halcyondesk/mailroom/pkg/notify"
	"github.com/halcyondesk/mailroom/pkg/server"
	"github.com/halcyondesk/mailroom/pkg/session"
	"github.com/halcyondesk/mailroom/pkg/telegram"
	"github.com/halcyondesk/mailroom/pkg/triage"
)

func main() {
	logger := log.NewWithOptions(os.Stdout, log.Options{
		ReportTimestamp: true,
		Level:           log.DebugLevel,
		TimeFormat:      time.Kitchen,
	})

	envs, err := config.LoadConfig(true)
	if err != nil {
		logger.Error("Configuration incomplete", "error", err)
		panic(errors.Wrap(err, "configuration incomplete"))
	}

	natsServer, err := bootstrap.StartEmbeddedNATSServer(logger)
	if err != nil {
		panic(errors.Wrap(err, "unable to start nats server"))
	}
	defer natsServer.Shutdown()

	nc, err := bootstrap.NewNatsClient(natsServer)
	if err != nil {
		panic(errors.Wrap(err, "unable to create nats client"))
	}
	defer nc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	authenticator := msauth.NewAuthenticator(logger, envs.TenantID, envs.ClientID, envs.ClientSecret)
	mailClient := graphmail.NewClient(logger, envs.EmailAddress, envs.FetchLimit)
	store := session.NewStore()

	aiService := ai.NewOpenAIService(logger, envs.OpenAIAPIKey, envs.OpenAIBaseURL)
	drafts := drafter.NewDrafter(logger, aiService, envs.CompletionsModel)

	chatClient := telegram.NewClient(logger, envs.TelegramBotToken)
	notifier := notify.NewNotifier(logger, chatClient, envs.TelegramChatID)

	triageService := triage.NewService(logger, authenticator, mailClient, store, notifier)
	bus := triage.NewBus(logger, nc)

	lookback := time.Duration(envs.FetchLookbackHours) * time.Hour

	worker := triage.NewWorker(logger, nc, triageService)
	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("Triage worker stopped", "error", err)
			cancel()
		}
	}()

	router := bot.NewRouter(logger, store, drafts, bus, lookback)
	listener := bot.NewListener(logger, chatClient, router)
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("Telegram listener stopped", "error", err)
			cancel()
		}
	}()

	httpServer := server.New(logger, bus, lookback)
	go func() {
		if err := httpServer.ListenAndServe(":" + envs.Port); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			cancel()
		}
	}()

	logger.Info("mailroom started",
		"mailbox", envs.EmailAddress,
		"chat_id", envs.TelegramChatID,
		"fetch_limit", envs.FetchLimit,
		"lookback_hours", envs.FetchLookbackHours,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", "signal", sig)
	case <-ctx.Done():
		logger.Info("Shutting down after component failure")
	}
}
