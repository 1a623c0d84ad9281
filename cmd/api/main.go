package main

import (
	"context"
	"log"

	"stockpay/internal/infrastructure"
	"stockpay/internal/shutdown"
)

func main() {
	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	app, cleanup, err := infrastructure.Bootstrap(ctx, infrastructure.RoleAPI)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		log.Fatalf("bootstrap error: %v", err)
	}
	defer cleanup()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("api server failed: %v", err)
	}
}
