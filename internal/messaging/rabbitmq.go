package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	questionsExchange = "assistant.commands"
	questionsQueue    = "assistant.questions"
	questionsKey      = "assistant.ask"
)

var ErrAssistantTimeout = errors.New("assistant did not reply in time")

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// AssistantQuestion travels from the chat server to the assistant bot.
type AssistantQuestion struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Timestamp int64  `json:"timestamp"`
}

// AssistantAnswer is the bot's reply, published to the caller's reply
// queue with the request's correlation id.
type AssistantAnswer struct {
	Answer    string `json:"answer"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry keeps dialing until the broker accepts the
// connection or the context expires. The broker usually comes up after
// the application when both start under one compose file.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	const retryInterval = 3 * time.Second

	for {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not ready, retrying",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", retryInterval))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to RabbitMQ: %w", err)
		case <-time.After(retryInterval):
		}
	}
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		questionsExchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return fmt.Errorf("failed to declare commands exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		questionsQueue, // name
		true,           // durable
		false,          // delete when unused
		false,          // exclusive
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare questions queue: %w", err)
	}

	if err := r.channel.QueueBind(
		questionsQueue,
		questionsKey,
		questionsExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind questions queue: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// AskAssistant publishes the question and blocks for the bot's answer
// using a per-request exclusive reply queue and a correlation id. The
// ctx deadline bounds the wait.
func (r *RabbitMQ) AskAssistant(ctx context.Context, sessionID, question string) (string, error) {
	replyQueue, err := r.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare reply queue: %w", err)
	}

	replies, err := r.channel.Consume(
		replyQueue.Name,
		"",    // consumer
		true,  // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return "", fmt.Errorf("failed to consume reply queue: %w", err)
	}
	defer func() {
		if _, err := r.channel.QueueDelete(replyQueue.Name, false, false, false); err != nil {
			slog.Warn("failed to delete reply queue",
				slog.String("queue", replyQueue.Name),
				slog.String("error", err.Error()))
		}
	}()

	correlationID := uuid.New().String()
	body, err := json.Marshal(AssistantQuestion{
		SessionID: sessionID,
		Question:  question,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal question: %w", err)
	}

	if err := r.channel.PublishWithContext(
		ctx,
		questionsExchange,
		questionsKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			CorrelationId: correlationID,
			ReplyTo:       replyQueue.Name,
		},
	); err != nil {
		return "", fmt.Errorf("failed to publish question: %w", err)
	}

	slog.Info("published assistant question",
		slog.String("session_id", sessionID),
		slog.String("correlation_id", correlationID))

	for {
		select {
		case <-ctx.Done():
			return "", ErrAssistantTimeout
		case msg, ok := <-replies:
			if !ok {
				return "", ErrAssistantTimeout
			}
			if msg.CorrelationId != correlationID {
				continue
			}

			var answer AssistantAnswer
			if err := json.Unmarshal(msg.Body, &answer); err != nil {
				return "", fmt.Errorf("failed to unmarshal answer: %w", err)
			}
			if answer.Error != "" {
				return "", errors.New(answer.Error)
			}
			return answer.Answer, nil
		}
	}
}

// ConsumeQuestions registers the bot-side consumer on the question queue.
func (r *RabbitMQ) ConsumeQuestions() (<-chan amqp.Delivery, error) {
	msgs, err := r.channel.Consume(
		questionsQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming assistant questions",
		slog.String("queue", questionsQueue))
	return msgs, nil
}

// Reply publishes the answer to the delivery's reply queue, echoing its
// correlation id.
func (r *RabbitMQ) Reply(ctx context.Context, delivery amqp.Delivery, answer *AssistantAnswer) error {
	if delivery.ReplyTo == "" {
		return errors.New("delivery carries no reply queue")
	}

	body, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	if err := r.channel.PublishWithContext(
		ctx,
		"", // default exchange routes by queue name
		delivery.ReplyTo,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			Body:          body,
			CorrelationId: delivery.CorrelationId,
		},
	); err != nil {
		return fmt.Errorf("failed to publish answer: %w", err)
	}

	slog.Info("published assistant answer",
		slog.String("correlation_id", delivery.CorrelationId))
	return nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
