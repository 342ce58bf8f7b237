package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultQueueName holds personalization and streak maintenance jobs.
	DefaultQueueName = "habit_personalization_jobs"
	// DefaultDLQName receives jobs that exhausted their retries.
	DefaultDLQName = "habit_personalization_jobs_dlq"
	// DefaultExchangeName is the direct exchange for immediate delivery.
	DefaultExchangeName = "habit_jobs"
	// DefaultDelayedExchangeName defers delivery via the
	// rabbitmq_delayed_message_exchange plugin.
	DefaultDelayedExchangeName = "habit_jobs_delayed"

	routingKeyJobs = "jobs"
	routingKeyDLQ  = "dlq"
)

// RabbitMQQueue is the JobQueue implementation backing both the API
// (producer) and the worker (consumer).
type RabbitMQQueue struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueName       string
	dlqName         string
	exchangeName    string
	delayedExchange string
}

// NewRabbitMQQueue dials the broker and declares the exchange and queue
// topology. Topology declaration is idempotent, so API and worker can
// both start in any order.
func NewRabbitMQQueue(amqpURL string) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	q := &RabbitMQQueue{
		conn:            conn,
		channel:         ch,
		queueName:       DefaultQueueName,
		dlqName:         DefaultDLQName,
		exchangeName:    DefaultExchangeName,
		delayedExchange: DefaultDelayedExchangeName,
	}

	if err := q.declareTopology(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare topology: %w", err)
	}
	return q, nil
}

func (q *RabbitMQQueue) declareTopology() error {
	if err := q.declareDelayedExchange(); err != nil {
		return err
	}

	err := q.channel.ExchangeDeclare(q.exchangeName, "direct",
		true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := q.channel.QueueDeclare(q.dlqName,
		true, false, false, false, amqp.Table{}); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := q.channel.QueueBind(q.dlqName, routingKeyDLQ, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}

	// Rejected jobs dead-letter back through the direct exchange.
	mainArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": routingKeyDLQ,
	}
	if _, err := q.channel.QueueDeclare(q.queueName,
		true, false, false, false, mainArgs); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := q.channel.QueueBind(q.queueName, routingKeyJobs, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// Bind to the delayed exchange too; ignore the error when the
	// plugin is absent and the exchange never got declared.
	_ = q.channel.QueueBind(q.queueName, routingKeyJobs, q.delayedExchange, false, nil)

	return nil
}

// declareDelayedExchange is best-effort: without the plugin, delayed
// jobs fall back to immediate publish in Enqueue.
func (q *RabbitMQQueue) declareDelayedExchange() error {
	err := q.channel.ExchangeDeclare(q.delayedExchange, "x-delayed-message",
		true, false, false, false, amqp.Table{"x-delayed-type": "direct"})
	if err == nil {
		return nil
	}

	// A failed declare closes the channel; reopen it so the rest of the
	// topology can still be set up.
	if q.channel.IsClosed() {
		ch, openErr := q.conn.Channel()
		if openErr != nil {
			return fmt.Errorf("reopen channel after delayed exchange declare: %w", openErr)
		}
		q.channel = ch
	}
	fmt.Printf("Warning: delayed message exchange unavailable (plugin missing?): %v\n", err)
	return nil
}

// Enqueue publishes a job. NotBefore maps to an x-delay header on the
// delayed exchange; NotAfter maps to a per-message TTL.
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID.String(),
		Timestamp:    job.CreatedAt,
	}

	if job.NotAfter != nil {
		if ttl := time.Until(*job.NotAfter); ttl > 0 {
			pub.Expiration = fmt.Sprintf("%d", ttl.Milliseconds())
		}
	}

	exchange := q.exchangeName
	if job.NotBefore != nil {
		if delay := time.Until(*job.NotBefore); delay > 0 {
			exchange = q.delayedExchange
			pub.Headers = amqp.Table{"x-delay": int(delay.Milliseconds())}
		}
	}

	if err := q.channel.PublishWithContext(ctx, exchange, routingKeyJobs, false, false, pub); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// decodeDelivery turns an AMQP delivery into a Message, settling
// deliveries that cannot or should not be processed. A nil Message with
// nil error means the delivery was handled here (expired, not yet due).
func decodeDelivery(d *amqp.Delivery, ch *amqp.Channel) (*Message, error) {
	if d.Expiration != "" {
		_ = d.Nack(false, false)
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		// Undecodable payload goes to the DLQ.
		_ = d.Nack(false, false)
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}

	if !job.ShouldProcess() {
		_ = d.Nack(false, true)
		return nil, nil
	}

	return &Message{Job: &job, DeliveryTag: d.DeliveryTag, Channel: ch}, nil
}

// Consume opens a dedicated consumer channel and streams messages until
// ctx is cancelled. prefetchCount=1 gives fair dispatch across workers;
// higher values trade fairness for throughput.
func (q *RabbitMQQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("start consuming: %w", err)
	}

	msgCh := make(chan *Message, prefetchCount)
	errCh := make(chan error, 1)

	go func() {
		defer close(msgCh)
		defer close(errCh)
		defer func() { _ = consumeCh.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					errCh <- fmt.Errorf("delivery channel closed")
					return
				}

				msg, err := decodeDelivery(&d, consumeCh)
				if err != nil {
					errCh <- err
					continue
				}
				if msg == nil {
					continue
				}

				select {
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				case msgCh <- msg:
				}
			}
		}
	}()

	return msgCh, errCh, nil
}

// Dequeue pulls one message via basic.get. Kept for tooling; workers
// use Consume.
func (q *RabbitMQQueue) Dequeue(ctx context.Context) (*Message, error) {
	d, ok, err := q.channel.Get(q.queueName, false)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return decodeDelivery(&d, q.channel)
}

func (q *RabbitMQQueue) HealthCheck(_ context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection closed")
	}
	if q.channel == nil || q.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel closed")
	}
	return nil
}

// PurgeOlderThan drains DLQ messages older than retention. Messages
// carry their enqueue timestamp; anything without one is treated as
// expired. The DLQ is roughly time-ordered, so the scan stops at the
// first message newer than the cutoff.
func (q *RabbitMQQueue) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)
	purged := 0

	for {
		select {
		case <-ctx.Done():
			return purged, ctx.Err()
		default:
		}

		msg, ok, err := q.channel.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("read DLQ: %w", err)
		}
		if !ok {
			return purged, nil
		}

		if msg.Timestamp.IsZero() || msg.Timestamp.Before(cutoff) {
			if err := msg.Ack(false); err != nil {
				return purged, fmt.Errorf("ack purged message: %w", err)
			}
			purged++
			continue
		}

		if err := msg.Nack(false, true); err != nil {
			return purged, fmt.Errorf("requeue message: %w", err)
		}
		return purged, nil
	}
}

func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
