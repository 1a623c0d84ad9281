package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"stockpay/internal/model"
)

const (
	StreamName   = "RECONCILE"
	Subject      = "reconcile.payment"
	DeadSubject  = "reconcile.dead"
	ConsumerName = "reconcile-workers"

	// AckWait bounds how long a worker may hold a delivery before the
	// server redelivers it. Job processing budgets against this window.
	AckWait = 30 * time.Second
)

// JetStreamQueue is the durable reconcile-job channel. Enqueue returns only
// after the stream acknowledges the write; consumption is at-least-once with
// explicit acks, so the worker state machine must stay self-idempotent.
type JetStreamQueue struct {
	js         jetstream.JetStream
	maxDeliver int
	log        *slog.Logger
}

func New(nc *nats.Conn, maxDeliver int, log *slog.Logger) (*JetStreamQueue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	return &JetStreamQueue{js: js, maxDeliver: maxDeliver, log: log.With("queue", StreamName)}, nil
}

// Provision creates or updates the backing stream. Safe to call from every
// process at startup.
func (q *JetStreamQueue) Provision(ctx context.Context) error {
	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{Subject, DeadSubject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		// Duplicate-window dedup on Nats-Msg-Id absorbs rapid webhook
		// replays before they ever reach a worker.
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("provision stream: %w", err)
	}
	return nil
}

// Enqueue durably persists a reconciliation job. The application reference
// doubles as the message id for server-side duplicate suppression.
func (q *JetStreamQueue) Enqueue(ctx context.Context, job model.ReconcileJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if _, err := q.js.Publish(ctx, Subject, data, jetstream.WithMsgID(job.Reference)); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	q.log.Info("job enqueued", "reference", job.Reference)
	return nil
}

// Consumer returns the durable pull consumer the worker pool reads from.
// MaxDeliver bounds redelivery; jobs that exhaust it are parked on the
// dead-letter subject by the pool.
func (q *JetStreamQueue) Consumer(ctx context.Context) (jetstream.Consumer, error) {
	cons, err := q.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       AckWait,
		MaxDeliver:    q.maxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("provision consumer: %w", err)
	}
	return cons, nil
}

// MaxDeliver is the bounded attempt count before a job is dead-lettered.
func (q *JetStreamQueue) MaxDeliver() int {
	return q.maxDeliver
}

// DeadLetter parks a job payload for manual inspection, tagged with the
// failure that ended its delivery attempts.
func (q *JetStreamQueue) DeadLetter(ctx context.Context, payload []byte, reason string) error {
	msg := &nats.Msg{
		Subject: DeadSubject,
		Data:    payload,
		Header:  nats.Header{"X-Failure": []string{reason}},
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}
