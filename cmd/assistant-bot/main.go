package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"denguespot-chat/internal/assistant"
	"denguespot-chat/internal/config"
	"denguespot-chat/internal/messaging"
	"denguespot-chat/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

const unavailableMessage = "DengueSpot AI is unavailable right now. Please try again in a few minutes."

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting assistant bot")

	rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	slog.Info("connected to rabbitmq")

	client := assistant.NewClient(cfg.GroqAPIURL, cfg.GroqAPIKey, cfg.GroqModel)

	msgs, err := rmq.ConsumeQuestions()
	if err != nil {
		slog.Error("failed to start consuming", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("assistant bot is ready to answer questions")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping question consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Info("question channel closed")
					return
				}
				msgCtx, msgCancel := context.WithTimeout(ctx, 30*time.Second)
				if err := processQuestion(msgCtx, msg, client, rmq); err != nil {
					slog.Error("error processing question", slog.String("error", err.Error()))
				}
				msgCancel()
				msg.Ack(false)
			}
		}
	}()

	<-sigChan
	slog.Info("shutting down assistant bot")
	cancel()
	time.Sleep(1 * time.Second)
	slog.Info("assistant bot stopped")
}

func processQuestion(ctx context.Context, msg amqp.Delivery, client *assistant.Client, rmq *messaging.RabbitMQ) error {
	var question messaging.AssistantQuestion
	if err := json.Unmarshal(msg.Body, &question); err != nil {
		return fmt.Errorf("failed to unmarshal question: %w", err)
	}

	slog.Info("processing assistant question",
		slog.String("session_id", question.SessionID))

	answer := &messaging.AssistantAnswer{
		Timestamp: time.Now().Unix(),
	}

	text, err := client.Complete(ctx, question.Question)
	switch {
	case err == nil:
		answer.Answer = text
		observability.AssistantRequests.WithLabelValues("ok").Inc()

	case errors.Is(err, assistant.ErrNotConfigured):
		slog.Warn("assistant API key not configured")
		answer.Error = unavailableMessage
		observability.AssistantRequests.WithLabelValues("error").Inc()

	default:
		slog.Error("completion failed",
			slog.String("session_id", question.SessionID),
			slog.String("error", err.Error()))
		answer.Error = unavailableMessage
		observability.AssistantRequests.WithLabelValues("error").Inc()
	}

	if err := rmq.Reply(ctx, msg, answer); err != nil {
		return fmt.Errorf("failed to publish answer: %w", err)
	}

	return nil
}
