package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accounter.org/internal/accounting"
	"accounter.org/internal/config"
	"accounter.org/internal/httpapi"
	"accounter.org/internal/obs"
	"accounter.org/internal/store/pg"
	"accounter.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}
	obs.SetOutput(os.Stdout, cfg.LogLevel)
	log := obs.Logger()

	if err := cfg.Validate(true); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	st, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}

	events := stream.New()
	svc := accounting.FromConfig(cfg, st, st.Rates(cfg.LocalCurrency), accounting.WithStream(events))

	api := httpapi.New(httpapi.ReadyProbe{DB: st.DB()}, version, svc,
		httpapi.WithStream(events),
		httpapi.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// SSE connections stay open; handlers bound their own work by the request context.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("version", version).Str("addr", srv.Addr).Str("lock_date", cfg.LedgerLockDate).Msg("starting accounter-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events.Close()
	_ = srv.Shutdown(ctx)
	_ = st.Close()
	log.Info().Msg("stopped")
}
