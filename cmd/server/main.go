package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/galaxynn/MDMS/internal/aggregation"
	"github.com/galaxynn/MDMS/internal/config"
	"github.com/galaxynn/MDMS/internal/events"
	httpserver "github.com/galaxynn/MDMS/internal/http"
	"github.com/galaxynn/MDMS/internal/repository"
	"github.com/galaxynn/MDMS/internal/service"
	"github.com/galaxynn/MDMS/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[mdms] ", log.LstdFlags|log.Lshortfile)

	if err := store.Migrate(cfg.DBURL, logger); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	engine := aggregation.NewEngine(logger)

	if cfg.RepairOnStartup {
		runRepairSweep(ctx, aggregation.NewSweeper(engine, st, logger), time.Duration(cfg.RepairTimeoutSecs)*time.Second, logger)
	} else {
		logger.Printf("startup repair sweep disabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		amqpPublisher := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.ReviewEventsQueue, logger)
		logger.Printf("publishing review events to queue %s", amqpPublisher.Queue())
		publisher = amqpPublisher
	}

	reviews := service.NewReviewService(st, engine, service.Options{
		Cache:     service.NewRatingCache(cfg.RatingCacheSize, time.Duration(cfg.RatingCacheTTLSecs)*time.Second),
		Publisher: publisher,
		Logger:    logger,
	})

	repo := repository.New(st.Pool())
	server := httpserver.New(cfg, st, repo, reviews, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}

// runRepairSweep recomputes every movie before traffic is accepted. A failed
// sweep is rolled back and logged; startup continues with the stored stats.
func runRepairSweep(ctx context.Context, sweeper *aggregation.Sweeper, timeout time.Duration, logger *log.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := sweeper.Run(sweepCtx); err != nil {
		logger.Printf("startup repair sweep failed, continuing: %v", err)
	}
}
