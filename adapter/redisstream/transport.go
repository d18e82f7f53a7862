package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xtrack"
)

// Relay appends each event to a Redis stream.
type Relay struct {
	cfg        Config
	client     *redis.Client
	dispatcher *xtrack.Dispatcher
	logger     *xlog.Logger
	clock      xclock.Clock

	closed atomic.Bool

	// metrics for observability
	metrics *relayMetrics
}

type relayMetrics struct {
	published     atomic.Uint64
	publishErrors atomic.Uint64
}

var (
	_ xtrack.Relay   = (*Relay)(nil)
	_ xtrack.Starter = (*Relay)(nil)
)

// NewRelay connects to Redis and verifies the connection with PING.
func NewRelay(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := xtrack.BuildOptions(opts...)

	ropts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     2,
		MinIdleConns: 1,
	}

	if cfg.TLS {
		ropts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(ropts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Relay{
		cfg:        cfg,
		client:     client,
		dispatcher: xtrack.NewDispatcher(RelayName, cfg.QueueSize, opts...),
		logger:     o.Logger,
		clock:      o.Clock,
		metrics:    &relayMetrics{},
	}, nil
}

// Transport enqueues the event; it never blocks.
func (r *Relay) Transport(meta xtrack.Metadata, payload []byte) {
	if r.closed.Load() {
		return
	}
	r.dispatcher.Enqueue(xtrack.Message{Metadata: meta, Payload: payload})
}

// Start launches the consumer that performs the XADDs.
func (r *Relay) Start(ctx context.Context) {
	r.dispatcher.Start(ctx, r.send)
}

func (r *Relay) send(ctx context.Context, msg xtrack.Message) {
	start := r.clock.Now()
	err := r.publish(ctx, msg)
	r.dispatcher.ReportSend(msg.Metadata, r.clock.Since(start), err)
	if err != nil {
		r.metrics.publishErrors.Add(1)
		r.logger.Error().
			Str("stream", r.cfg.Stream).
			Str("event", msg.Metadata.Event).
			Err(err).
			Msg("xtrack: couldn't append event to redis stream")
		return
	}
	r.metrics.published.Add(1)
}

func (r *Relay) publish(ctx context.Context, msg xtrack.Message) error {
	wctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	args := &redis.XAddArgs{
		Stream: r.cfg.Stream,
		ID:     "*", // Let Redis generate ID
		Values: encodeValues(msg),
	}

	// Approximate trimming to keep stream bounded
	if r.cfg.MaxLenApprox > 0 {
		args.MaxLen = r.cfg.MaxLenApprox
		args.Approx = true
	}

	return r.client.XAdd(wctx, args).Err()
}

// Stats returns relay telemetry.
type Stats struct {
	Dispatcher    xtrack.DispatcherStats
	Published     uint64
	PublishErrors uint64
}

func (r *Relay) Stats() Stats {
	return Stats{
		Dispatcher:    r.dispatcher.Stats(),
		Published:     r.metrics.published.Load(),
		PublishErrors: r.metrics.publishErrors.Load(),
	}
}

// Close releases the Redis client. Events tracked afterwards are discarded; the
// consumer should be stopped through its context first.
func (r *Relay) Close() error {
	if r.closed.Swap(true) {
		return nil // Already closed
	}
	return r.client.Close()
}

// Helper functions

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}

	return nil
}
