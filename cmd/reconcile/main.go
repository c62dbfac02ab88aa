// Command reconcile re-verifies pending payments against the gateway, for
// callbacks that never arrived. It is an operator-run caller of the core,
// not a scheduler.
package main

import (
	"context"
	"flag"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"stayhub/internal/adapters/observability"
	"stayhub/internal/adapters/paystack"
	"stayhub/internal/app"
	"stayhub/internal/shared"
	"stayhub/internal/storage"
)

func main() {
	limit := flag.Int("limit", 200, "maximum pending payments to check")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer store.Close()

	gw, err := paystack.New(cfg.PaystackBase, cfg.PaystackSecret, cfg.PaystackRPS, cfg.GatewayTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize payment gateway client")
	}
	payments := app.NewPaymentService(store, store, gw, cfg.CallbackURL(), nil)

	pending, err := payments.ListPending(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("list pending payments failed")
	}
	log.Info().Int("pending", len(pending)).Int("workers", cfg.ReconcileWorkers).Msg("reconcile starting")

	sem := semaphore.NewWeighted(int64(max(cfg.ReconcileWorkers, 1)))
	var wg sync.WaitGroup
	var paid, failed atomic.Int64

	for _, p := range pending {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(reference string) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := payments.VerifyPayment(ctx, reference)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("reference", reference).Err(err).Msg("verify failed")
				return
			}
			if res.Succeeded {
				paid.Add(1)
			}
			log.Info().Str("reference", reference).Str("status", res.Status).Bool("paid", res.Succeeded).Msg("verified")
		}(p.Reference)
	}

	wg.Wait()
	log.Info().Int64("paid", paid.Load()).Int64("errors", failed.Load()).Msg("reconcile completed")
}
