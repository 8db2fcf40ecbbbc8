package queue

import (
	"context"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/streadway/amqp"
)

const refreshQueue = "snapshot_refresh"

// * RefreshRequest asks for the snapshots of one user, or of everything when UserID is empty
type RefreshRequest struct {
	UserID      string    `json:"user_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.New(
			"QUEUE_CONNECTION_ERROR",
			"Failed to connect to RabbitMQ",
			"Could not dial the broker",
			err,
			errors.LevelError,
		)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.New(
			"QUEUE_CONNECTION_ERROR",
			"Failed to open RabbitMQ channel",
			"Could not open a channel on the broker connection",
			err,
			errors.LevelError,
		)
	}

	if _, err := declare(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQ{
		conn:    conn,
		channel: channel,
	}, nil
}

func declare(channel *amqp.Channel) (amqp.Queue, error) {
	q, err := channel.QueueDeclare(
		refreshQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return q, errors.New(
			"QUEUE_DECLARE_ERROR",
			"Failed to declare refresh queue",
			refreshQueue,
			err,
			errors.LevelError,
		)
	}
	return q, nil
}

func encodeRequest(req RefreshRequest) ([]byte, error) {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	return json.Marshal(req)
}

func decodeRequest(body []byte) (RefreshRequest, error) {
	var req RefreshRequest
	err := json.Unmarshal(body, &req)
	return req, err
}

func (r *RabbitMQ) PublishRefresh(ctx context.Context, userID string) error {
	body, err := encodeRequest(RefreshRequest{UserID: userID})
	if err != nil {
		return err
	}

	err = r.channel.Publish(
		"",
		refreshQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return errors.New(
			"QUEUE_PUBLISH_ERROR",
			"Failed to queue refresh",
			"Could not publish the refresh request",
			err,
			errors.LevelError,
		)
	}
	return nil
}

// * ConsumeRefreshRequests delivers requests to handler until ctx ends or the channel closes
func (r *RabbitMQ) ConsumeRefreshRequests(ctx context.Context, handler func(ctx context.Context, req RefreshRequest) error) error {
	msgs, err := r.channel.Consume(
		refreshQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.New(
			"QUEUE_CONSUME_ERROR",
			"Failed to consume refresh queue",
			refreshQueue,
			err,
			errors.LevelError,
		)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					logger.Warn("refresh queue closed")
					return
				}
				handleDelivery(ctx, d, handler)
			}
		}
	}()

	return nil
}

// * acknowledger is the part of amqp.Delivery handleDelivery needs
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handleDelivery(ctx context.Context, d amqp.Delivery, handler func(ctx context.Context, req RefreshRequest) error) {
	process(ctx, d.Body, d, handler)
}

func process(ctx context.Context, body []byte, ack acknowledger, handler func(ctx context.Context, req RefreshRequest) error) {
	req, err := decodeRequest(body)
	if err != nil {
		logger.Error("Error decoding refresh request: %v", err)
		nack(ack)
		return
	}

	if err := handler(ctx, req); err != nil {
		logger.Error("Error handling refresh request: %v", err)
		nack(ack)
		return
	}

	if err := ack.Ack(false); err != nil {
		logger.Error("Error acknowledging refresh request: %v", err)
	}
}

func nack(ack acknowledger) {
	if err := ack.Nack(false, false); err != nil {
		logger.Error("Error rejecting refresh request: %v", err)
	}
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	return r.conn.Close()
}
