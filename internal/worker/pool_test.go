package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"stockpay/internal/model"
)

type fakeMsg struct {
	data       []byte
	deliveries uint64
	acked      bool
	naked      bool
	nakDelay   time.Duration
	termed     bool
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.deliveries}, nil
}
func (m *fakeMsg) Data() []byte                        { return m.data }
func (m *fakeMsg) Headers() nats.Header                { return nil }
func (m *fakeMsg) Subject() string                     { return "reconcile.payment" }
func (m *fakeMsg) Reply() string                       { return "" }
func (m *fakeMsg) Ack() error                          { m.acked = true; return nil }
func (m *fakeMsg) DoubleAck(ctx context.Context) error { m.acked = true; return nil }
func (m *fakeMsg) Nak() error                          { m.naked = true; return nil }
func (m *fakeMsg) NakWithDelay(d time.Duration) error  { m.naked = true; m.nakDelay = d; return nil }
func (m *fakeMsg) InProgress() error                   { return nil }
func (m *fakeMsg) Term() error                         { m.termed = true; return nil }
func (m *fakeMsg) TermWithReason(reason string) error  { m.termed = true; return nil }

type fakeQueue struct {
	maxDeliver int
	dead       []string
}

func (q *fakeQueue) Consumer(ctx context.Context) (jetstream.Consumer, error) { return nil, nil }
func (q *fakeQueue) MaxDeliver() int                                          { return q.maxDeliver }
func (q *fakeQueue) DeadLetter(ctx context.Context, payload []byte, reason string) error {
	q.dead = append(q.dead, reason)
	return nil
}

func jobMsg(t *testing.T, job model.ReconcileJob, deliveries uint64) *fakeMsg {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return &fakeMsg{data: data, deliveries: deliveries}
}

func TestHandle_ErrorClasses(t *testing.T) {
	cases := map[string]struct {
		mutate     func(*fakeStore, *model.ReconcileJob)
		deliveries uint64
		wantAck    bool
		wantNak    bool
		wantTerm   bool
		wantDead   bool
	}{
		"success acks": {
			mutate:     func(s *fakeStore, j *model.ReconcileJob) {},
			deliveries: 1,
			wantAck:    true,
		},
		"duplicate acks as no-op": {
			mutate: func(s *fakeStore, j *model.ReconcileJob) {
				s.payments = append(s.payments, model.Payment{
					Reference:    j.Reference,
					Processor:    j.Processor,
					ProcessorRef: j.ProcessorRef,
					Status:       model.PaymentSuccessful,
				})
			},
			deliveries: 2,
			wantAck:    true,
		},
		"invalid intent is parked": {
			mutate:     func(s *fakeStore, j *model.ReconcileJob) { j.Metadata.Intent = "unknown_intent" },
			deliveries: 1,
			wantTerm:   true,
			wantDead:   true,
		},
		"amount mismatch is parked": {
			mutate:     func(s *fakeStore, j *model.ReconcileJob) { j.Amount = 999 },
			deliveries: 1,
			wantTerm:   true,
			wantDead:   true,
		},
		"transient error naks": {
			mutate:     func(s *fakeStore, j *model.ReconcileJob) { s.findErr = errors.New("connection reset") },
			deliveries: 1,
			wantNak:    true,
		},
		"transient error at attempt bound is parked": {
			mutate:     func(s *fakeStore, j *model.ReconcileJob) { s.findErr = errors.New("connection reset") },
			deliveries: 5,
			wantTerm:   true,
			wantDead:   true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := seededStore()
			q := &fakeQueue{maxDeliver: 5}
			proc := NewProcessor(store, newFakeLock(), &fakeNotifier{}, false, testLogger())
			pool := NewPool(q, proc, 1, testLogger())

			job := testJob()
			tc.mutate(store, &job)
			msg := jobMsg(t, job, tc.deliveries)

			pool.handle(context.Background(), msg)

			if msg.acked != tc.wantAck {
				t.Errorf("acked = %v, want %v", msg.acked, tc.wantAck)
			}
			if msg.naked != tc.wantNak {
				t.Errorf("naked = %v, want %v", msg.naked, tc.wantNak)
			}
			if msg.termed != tc.wantTerm {
				t.Errorf("termed = %v, want %v", msg.termed, tc.wantTerm)
			}
			if (len(q.dead) > 0) != tc.wantDead {
				t.Errorf("dead letters = %v, want dead %v", q.dead, tc.wantDead)
			}
		})
	}
}

func TestHandle_NakDelayGrowsWithDeliveries(t *testing.T) {
	store := seededStore()
	store.findErr = errors.New("connection reset")
	q := &fakeQueue{maxDeliver: 10}
	proc := NewProcessor(store, newFakeLock(), &fakeNotifier{}, false, testLogger())
	pool := NewPool(q, proc, 1, testLogger())

	first := jobMsg(t, testJob(), 1)
	pool.handle(context.Background(), first)
	third := jobMsg(t, testJob(), 3)
	pool.handle(context.Background(), third)

	if first.nakDelay != time.Second || third.nakDelay != 4*time.Second {
		t.Errorf("nak delays = %v, %v; want 1s, 4s", first.nakDelay, third.nakDelay)
	}
}

func TestHandle_UnparseablePayloadIsParked(t *testing.T) {
	store := seededStore()
	q := &fakeQueue{maxDeliver: 5}
	proc := NewProcessor(store, newFakeLock(), &fakeNotifier{}, false, testLogger())
	pool := NewPool(q, proc, 1, testLogger())

	msg := &fakeMsg{data: []byte("{not json"), deliveries: 1}
	pool.handle(context.Background(), msg)

	if !msg.termed {
		t.Error("unparseable payload must terminate delivery")
	}
	if len(q.dead) != 1 || !strings.Contains(q.dead[0], "unmarshal") {
		t.Errorf("expected dead letter with unmarshal reason, got %v", q.dead)
	}
}

func TestHandle_FinishesJobAfterShutdownSignal(t *testing.T) {
	store := seededStore()
	q := &fakeQueue{maxDeliver: 5}
	proc := NewProcessor(store, newFakeLock(), &fakeNotifier{}, false, testLogger())
	pool := NewPool(q, proc, 1, testLogger())

	// The run context is already cancelled, as it is for a job in flight
	// when the process receives a shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := jobMsg(t, testJob(), 1)
	pool.handle(ctx, msg)

	if !msg.acked {
		t.Fatal("an in-flight job must finish and ack during shutdown")
	}
	if len(store.payments) != 1 {
		t.Errorf("expected committed payment, got %d", len(store.payments))
	}
	if q.dead != nil || msg.naked || msg.termed {
		t.Error("a draining job must not be redelivered or parked")
	}
}

func TestBackoff(t *testing.T) {
	cases := []struct {
		deliveries int
		want       time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := backoff(tc.deliveries); got != tc.want {
			t.Errorf("backoff(%d) = %v, want %v", tc.deliveries, got, tc.want)
		}
	}
}
