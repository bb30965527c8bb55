package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nandanugg/geonotify/config"
)

const (
	exchangeName = "geonotify.events"
	queueName    = "geofence_transitions"
)

// transition mirrors the fields of a published event this tool prints.
type transition struct {
	ID                     string `json:"id"`
	TransitionType         int    `json:"transitionType"`
	OpenedFromNotification bool   `json:"openedFromNotification"`
	Timestamp              int64  `json:"timestamp"`
	EventID                string `json:"eventId"`
}

func (t transition) kind() string {
	switch t.TransitionType {
	case 1:
		return "enter"
	case 2:
		return "exit"
	default:
		return fmt.Sprintf("type-%d", t.TransitionType)
	}
}

func main() {
	var envFile string

	cmd := &cobra.Command{
		Use:           "event_listener",
		Short:         "Print geofence transitions published by the server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listen(cmd.Context(), envFile)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional env file; environment variables take precedence")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "event_listener: %v\n", err)
		os.Exit(1)
	}
}

func listen(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	conn, err := config.NewRabbitMQ(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch); err != nil {
		return err
	}

	msgs, err := ch.ConsumeWithContext(ctx, queueName, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queueName, err)
	}
	logger.Info("waiting for geofence transitions", zap.String("queue", queueName))

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			var batch []transition
			if err := json.Unmarshal(msg.Body, &batch); err != nil {
				logger.Warn("skipping malformed message", zap.String("message_id", msg.MessageId), zap.Error(err))
				continue
			}
			for _, t := range batch {
				fmt.Printf("[%s] geofence=%s background=%t event=%s\n",
					t.kind(), t.ID, t.OpenedFromNotification, t.EventID)
			}
		}
	}
}

func declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queueName, "", exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
