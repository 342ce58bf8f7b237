package queue

import (
	"context"
	"time"
)

// MessageInterface is satisfied by *Message and by worker test doubles.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the broker-facing surface the API and worker share.
type JobQueue interface {
	// Enqueue publishes a job. Jobs with NotBefore set are delayed
	// until that time; jobs with NotAfter set expire at that time.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue pulls a single message, or nil when the queue is empty.
	// The caller must ack or nack it. Prefer Consume for workers; this
	// exists for one-shot tooling.
	Dequeue(ctx context.Context) (*Message, error)

	// Consume delivers messages as they arrive until ctx is cancelled.
	// prefetchCount bounds unacknowledged messages per consumer; the
	// caller must ack or nack each one. Both returned channels close
	// when consumption stops.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error

	// HealthCheck reports whether the broker connection is usable.
	HealthCheck(ctx context.Context) error
}

// DLQPurger drops dead-lettered messages past a retention period.
// RabbitMQQueue implements it; the garbage collector drives it.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
