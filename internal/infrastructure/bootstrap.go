package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"stockpay/internal/checkout"
	"stockpay/internal/config"
	"stockpay/internal/gateway"
	"stockpay/internal/notify"
	"stockpay/internal/queue"
	"stockpay/internal/repository"
	transportHTTP "stockpay/internal/transport/http"
	"stockpay/internal/webhook"
	"stockpay/internal/worker"
)

// Role selects which servers a process runs. The reference deployment runs
// ingestion and reconciliation as separate processes sharing this wiring.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application for the given role. Returns the App, a cleanup function, or an
// error.
func Bootstrap(ctx context.Context, role Role) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	nc, err := connectNats(cfg.NatsURL())
	if err != nil {
		db.Close()
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	cleanup := func() {
		nc.Close()
		_ = rdb.Close()
		db.Close()
	}

	jobQueue, err := queue.New(nc, cfg.MaxDeliver, log)
	if err != nil {
		return nil, cleanup, err
	}
	if err := jobQueue.Provision(ctx); err != nil {
		return nil, cleanup, err
	}

	store := repository.NewStore(db)
	refLock := repository.NewRefLock(rdb, 30*time.Second)
	paystack := gateway.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout, log)
	mailer := notify.NewMailer(cfg.MailgunAPIKey, cfg.MailgunDomain, cfg.MailFrom, log)

	var servers []Server

	switch role {
	case RoleWorker:
		processor := worker.NewProcessor(store, refLock, mailer, cfg.RecordFailedCharges, log)
		servers = append(servers, worker.NewPool(jobQueue, processor, cfg.WorkerConcurrency, log))

	case RoleAPI:
		signer := webhook.NewSigner(cfg.PaystackSecretKey)
		webhooks := webhook.NewHandler(signer, paystack, jobQueue, log)
		initiator := checkout.NewInitiator(store, paystack, log)

		addr, apiErr := cfg.ApiAddr()
		if apiErr != nil {
			return nil, cleanup, apiErr
		}
		servers = append(servers, transportHTTP.NewServer(addr, webhooks, initiator, log))

	default:
		return nil, cleanup, fmt.Errorf("unknown role %q", role)
	}

	return NewApp(servers), cleanup, nil
}
