package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"stockpay/internal/model"
	"stockpay/internal/queue"
	"stockpay/internal/repository"
)

// jobQueue is the slice of the queue the pool needs: a consumer to pull
// from, the redelivery bound, and a place to park unrecoverable jobs.
type jobQueue interface {
	Consumer(ctx context.Context) (jetstream.Consumer, error)
	MaxDeliver() int
	DeadLetter(ctx context.Context, payload []byte, reason string) error
}

// Pool pulls reconciliation jobs off the durable consumer with bounded
// concurrency. Each job is processed independently; no ordering is assumed
// across jobs, and duplicates are resolved by the processor, not the queue.
type Pool struct {
	queue       jobQueue
	processor   *Processor
	concurrency int
	log         *slog.Logger
}

func NewPool(q jobQueue, p *Processor, concurrency int, log *slog.Logger) *Pool {
	return &Pool{
		queue:       q,
		processor:   p,
		concurrency: concurrency,
		log:         log.With("component", "reconcile-pool"),
	}
}

// Run blocks until ctx is cancelled. On shutdown the iterator stops handing
// out messages and in-flight jobs drain before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	cons, err := p.queue.Consumer(ctx)
	if err != nil {
		return err
	}

	it, err := cons.Messages(jetstream.PullMaxMessages(p.concurrency))
	if err != nil {
		return fmt.Errorf("open message iterator: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				msg, err := it.Next()
				if err != nil {
					if !errors.Is(err, jetstream.ErrMsgIteratorClosed) {
						p.log.Error("message iterator failed", "worker", id, "error", err)
					}
					return
				}
				p.handle(ctx, msg)
			}
		}(i)
	}

	p.log.Info("reconciliation workers running", "concurrency", p.concurrency)

	<-ctx.Done()
	p.log.Info("worker pool shutting down, draining in-flight jobs")
	it.Stop()
	wg.Wait()
	return nil
}

func (p *Pool) handle(ctx context.Context, msg jetstream.Msg) {
	// Shutdown cancels the Run context, but a job already handed to a
	// worker finishes cleanly: aborting its transaction mid-commit would
	// only force a redelivery. The ack window bounds the detached context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queue.AckWait)
	defer cancel()

	deliveries := 1
	if meta, err := msg.Metadata(); err == nil {
		deliveries = int(meta.NumDelivered)
	}
	log := p.log.With("deliveries", deliveries)

	var job model.ReconcileJob
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		// Unparseable payloads can never succeed; park them.
		log.Error("failed to unmarshal job", "error", err)
		p.park(ctx, msg, fmt.Sprintf("unmarshal: %v", err))
		return
	}
	log = log.With("reference", job.Reference)

	err := p.processor.Process(ctx, job)
	switch {
	case err == nil:
		p.ack(msg, log)

	case errors.Is(err, repository.ErrDuplicatePayment):
		// Already reconciled: a logical no-op, not a defect to inspect.
		log.Info("duplicate delivery ignored")
		p.ack(msg, log)

	case Terminal(err):
		log.Error("terminal reconciliation failure", "error", err)
		p.park(ctx, msg, err.Error())

	default:
		log.Error("transient reconciliation failure", "error", err)
		if deliveries >= p.queue.MaxDeliver() {
			p.park(ctx, msg, fmt.Sprintf("retries exhausted: %v", err))
			return
		}
		if nakErr := msg.NakWithDelay(backoff(deliveries)); nakErr != nil {
			log.Error("failed to nak message", "error", nakErr)
		}
	}
}

func (p *Pool) ack(msg jetstream.Msg, log *slog.Logger) {
	if err := msg.Ack(); err != nil {
		log.Error("failed to ack message", "error", err)
	}
}

// park dead-letters the payload and terminates delivery.
func (p *Pool) park(ctx context.Context, msg jetstream.Msg, reason string) {
	if err := p.queue.DeadLetter(ctx, msg.Data(), reason); err != nil {
		p.log.Error("failed to dead-letter job", "error", err)
	}
	if err := msg.Term(); err != nil {
		p.log.Error("failed to terminate message", "error", err)
	}
}

func backoff(deliveries int) time.Duration {
	d := time.Duration(1<<uint(deliveries-1)) * time.Second
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// Start implements the infrastructure.Server interface.
func (p *Pool) Start(ctx context.Context) error {
	return p.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (p *Pool) Stop(ctx context.Context) error {
	return nil
}
