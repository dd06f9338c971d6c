package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"outbound-dialer/pkg/logger"

	"github.com/streadway/amqp"
)

const DefaultQueue = "dialer.campaign_runs"

// Channel is the subset of *amqp.Channel used here.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

func declare(ch Channel, queue string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
}

// AMQPLauncher publishes run requests as persistent messages on a durable queue.
type AMQPLauncher struct {
	mu    sync.Mutex
	ch    Channel
	queue string
}

func NewAMQPLauncher(ch Channel, queue string) (*AMQPLauncher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	q, err := declare(ch, queue)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPLauncher{ch: ch, queue: q.Name}, nil
}

func (l *AMQPLauncher) Launch(ctx context.Context, req RunRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode run request: %w", err)
	}

	// A channel is not safe for concurrent publishers.
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ch.Publish("", l.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.CampaignID,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish run request: %w", err)
	}
	logger.From(ctx).Info("campaign run queued", "campaign_id", req.CampaignID, "queue", l.queue)
	return nil
}

func (l *AMQPLauncher) Close() error { return l.ch.Close() }

// Consume runs every delivered request and acks it once the run returns.
//
// Rules:
//   - Undecodable messages are acked and dropped.
//   - A run cut short by shutdown is requeued; any other outcome is acked, since the run
//     re-derives its work from the store and recovery re-attaches unfinished campaigns.
//   - A panicking run is recovered, logged and acked; other runs keep going.
//   - Runs execute concurrently up to prefetch.
func Consume(ctx context.Context, ch Channel, queue string, prefetch int, runner Runner, log *slog.Logger) error {
	if queue == "" {
		queue = DefaultQueue
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if log == nil {
		log = slog.Default()
	}
	if _, err := declare(ch, queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("jobs: delivery channel closed")
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				handleDelivery(ctx, d, runner, log)
			}(d)
		}
	}
}

func handleDelivery(ctx context.Context, d amqp.Delivery, runner Runner, log *slog.Logger) {
	var req RunRequest
	if err := json.Unmarshal(d.Body, &req); err != nil || req.Validate() != nil {
		log.Warn("dropping invalid run request", "message_id", d.MessageId, "err", err)
		_ = d.Ack(false)
		return
	}

	runLog := log.With("campaign_id", req.CampaignID, "account_id", req.AccountID)
	defer func() {
		// Panics are acked, not requeued.
		if p := recover(); p != nil {
			runLog.Error("campaign run panicked", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			_ = d.Ack(false)
		}
	}()
	err := runner.Run(logger.With(ctx, runLog), req)
	switch {
	case err != nil && ctx.Err() != nil:
		runLog.Info("run interrupted by shutdown, requeueing")
		_ = d.Nack(false, true)
		return
	case err != nil:
		runLog.Error("campaign run ended with error", "err", err)
	default:
		runLog.Info("campaign run finished")
	}
	_ = d.Ack(false)
}
