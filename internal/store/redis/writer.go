// Package redis implements the engine's live telemetry fan-out over Redis
// Pub/Sub: every TickReport is JSON-encoded and published on a single
// channel for any number of external subscribers. Grounded on the
// teacher's internal/store/redis/writer.go Writer shape (a thin wrapper
// around *goredis.Client fed by a channel), simplified from its
// candle/stream writer down to a single Pub/Sub publish.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"metalindexd/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Channel is the Pub/Sub channel tick reports are published on.
const Channel = "index:ticks"

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string
	Password string
	DB       int
}

// Writer publishes TickReports to Redis Pub/Sub.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads TickReports from reportCh and publishes them to Channel.
// Blocks until ctx is cancelled or reportCh is closed.
func (w *Writer) Run(ctx context.Context, reportCh <-chan model.TickReport) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-reportCh:
			if !ok {
				return
			}
			w.publish(ctx, r)
		}
	}
}

func (w *Writer) publish(ctx context.Context, r model.TickReport) {
	data, err := json.Marshal(r)
	if err != nil {
		log.Printf("[redis] marshal tick report: %v", err)
		return
	}
	if err := w.client.Publish(ctx, Channel, data).Err(); err != nil {
		log.Printf("[redis] publish: %v", err)
	}
}
