package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metalindexd/config"
	"metalindexd/internal/api"
	"metalindexd/internal/broadcast"
	"metalindexd/internal/engine"
	loggerpkg "metalindexd/internal/logger"
	"metalindexd/internal/metrics"
	"metalindexd/internal/model"
	"metalindexd/internal/oracle"
	"metalindexd/internal/quotesource"
	redisstore "metalindexd/internal/store/redis"
	sqlitestore "metalindexd/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	loggerpkg.Init("indexd", level)

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	quotes := quotesource.New(cfg.QuoteAPIKey, 2.0/3.0) // ~1.5s between requests
	sink := oracle.New(cfg.OracleAddress, cfg.RPCURL, cfg.PrivateKey)

	if minInterval, err := sink.MinUpdateInterval(ctx); err != nil {
		slog.Warn("could not read oracle min update interval at startup", "error", err)
	} else if configured := int64(cfg.UpdateInterval.Seconds()); configured < minInterval {
		slog.Warn("configured update interval is below the oracle's minimum",
			"update_interval_seconds", configured, "oracle_min_update_interval_seconds", minInterval)
	}

	hub := broadcast.NewHub(func() { prom.BroadcastDropsTotal.Inc() })
	reportCh := make(chan model.TickReport, 16)

	var sqlWriter *sqlitestore.Writer
	if cfg.SQLitePath != "" {
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
		if err != nil {
			slog.Warn("sqlite init failed, continuing without audit trail", "error", err)
		} else {
			sqlWriter = w
		}
	}

	var redisWriter *redisstore.Writer
	if cfg.RedisAddr != "" {
		w, err := redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr})
		if err != nil {
			slog.Warn("redis init failed, continuing without pub/sub fan-out", "error", err)
		} else {
			redisWriter = w
		}
	}

	sqlCh := make(chan model.TickReport, 16)
	redisCh := make(chan model.TickReport, 16)
	broadcastCh := make(chan model.TickReport, 16)
	go fanOutReports(ctx, reportCh, sqlCh, redisCh, broadcastCh)

	if sqlWriter != nil {
		go sqlWriter.Run(ctx, sqlCh)
	} else {
		drain(ctx, sqlCh)
	}
	if redisWriter != nil {
		go redisWriter.Run(ctx, redisCh)
		health.SetRedisConnected(true)
	} else {
		drain(ctx, redisCh)
	}
	go hub.Run(broadcastCh)

	apiSrv := api.NewServer(cfg.MetricsAddr, health, hub)
	apiSrv.Start()

	eng := engine.New(engine.Config{
		Quotes:         quotes,
		Sink:           sink,
		Metrics:        prom,
		DiscoveryPhase: cfg.DiscoveryPhase,
		PublishHours:   cfg.PublishHoursUTC,
		ReportCh:       reportCh,
	})

	slog.Info("indexd starting", "update_interval", cfg.UpdateInterval, "discovery_phase", cfg.DiscoveryPhase)
	runTicker(ctx, eng, cfg.UpdateInterval, health)

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	apiSrv.Stop(shutCtx)
	if sqlWriter != nil {
		sqlWriter.DB().Close()
	}
	slog.Info("indexd stopped")
}

func runTicker(ctx context.Context, eng *engine.Engine, interval time.Duration, health *metrics.HealthStatus) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			report := eng.Tick(ctx, now)
			health.SetLastTickTime(now)
			health.SetQuoteSourceOK(report.TickErr == "")
			health.SetOracleOK(report.PublishErr == "")
			if report.TickErr != "" {
				slog.Warn("tick failed", "trace_id", report.TraceID, "error", report.TickErr)
			}
		}
	}
}

// fanOutReports copies each report onto every ambient consumer channel
// without blocking the engine's own reportCh send; a slow or absent
// consumer simply drops that tick's report.
func fanOutReports(ctx context.Context, in <-chan model.TickReport, outs ...chan model.TickReport) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-in:
			if !ok {
				return
			}
			for _, out := range outs {
				select {
				case out <- r:
				default:
				}
			}
		}
	}
}

func drain(ctx context.Context, ch <-chan model.TickReport) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
			}
		}
	}()
}
