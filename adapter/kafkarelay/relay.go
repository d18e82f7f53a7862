// Package kafkarelay publishes events to a Kafka topic.
//
// Messages are keyed by portal so one portal's events land on one partition and
// keep their order. Headers carry the same metadata the HTTP relay sends.
package kafkarelay

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xtrack"
)

const RelayName = "kafka"

// Platform is sent in the X-Platform header.
const Platform = "web"

func init() {
	if err := xtrack.RegisterRelay(RelayName, func(cfg map[string]any, opts ...xtrack.Option) (xtrack.Relay, error) {
		return New(ConfigFromMap(cfg), opts...)
	}); err != nil {
		panic(fmt.Errorf("xtrack/kafkarelay: failed to register relay: %w", err))
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Relay writes each event as one Kafka message.
type Relay struct {
	topic        string
	writeTimeout time.Duration
	writer       messageWriter
	dispatcher   *xtrack.Dispatcher
	logger       *xlog.Logger
	clock        xclock.Clock

	closed    atomic.Bool
	published atomic.Uint64
	failed    atomic.Uint64
}

var (
	_ xtrack.Relay   = (*Relay)(nil)
	_ xtrack.Starter = (*Relay)(nil)
)

// New validates cfg and builds the writer. The writer connects lazily on the
// first message.
func New(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    1,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newRelay(cfg, w, opts...), nil
}

func newRelay(cfg Config, w messageWriter, opts ...xtrack.Option) *Relay {
	o := xtrack.BuildOptions(opts...)
	return &Relay{
		topic:        cfg.Topic,
		writeTimeout: cfg.WriteTimeout,
		writer:       w,
		dispatcher:   xtrack.NewDispatcher(RelayName, cfg.QueueSize, opts...),
		logger:       o.Logger,
		clock:        o.Clock,
	}
}

// Use builds a relay and installs it as the process relay.
func Use(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	r, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := xtrack.SetRelay(r); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

// Transport enqueues the event; it never blocks.
func (r *Relay) Transport(meta xtrack.Metadata, payload []byte) {
	if r.closed.Load() {
		return
	}
	r.dispatcher.Enqueue(xtrack.Message{Metadata: meta, Payload: payload})
}

// Start launches the consumer that writes to Kafka.
func (r *Relay) Start(ctx context.Context) {
	r.dispatcher.Start(ctx, r.send)
}

func (r *Relay) send(ctx context.Context, msg xtrack.Message) {
	wctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	start := r.clock.Now()
	err := r.writer.WriteMessages(wctx, buildMessage(msg, r.clock.Now()))
	r.dispatcher.ReportSend(msg.Metadata, r.clock.Since(start), err)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error().
			Str("topic", r.topic).
			Str("event", msg.Metadata.Event).
			Err(err).
			Msg("xtrack: couldn't write event to kafka")
		return
	}
	r.published.Add(1)
}

func buildMessage(msg xtrack.Message, now time.Time) kafka.Message {
	md := msg.Metadata
	headers := []kafka.Header{
		{Key: "Content-Type", Value: []byte("application/json")},
		{Key: "X-Local-Time", Value: []byte(strconv.FormatUint(md.Time, 10))},
		{Key: "X-Platform", Value: []byte(Platform)},
		{Key: "X-Portal", Value: []byte(md.Portal)},
	}
	if md.DebugPin != nil {
		headers = append(headers, kafka.Header{
			Key:   "X-Debug-Pin",
			Value: []byte(strconv.FormatInt(int64(*md.DebugPin), 10)),
		})
	}
	return kafka.Message{
		Key:     []byte(md.Portal),
		Value:   msg.Payload,
		Headers: headers,
		Time:    now.UTC(),
	}
}

// Stats returns relay telemetry.
type Stats struct {
	Dispatcher xtrack.DispatcherStats
	Published  uint64
	Failed     uint64
}

func (r *Relay) Stats() Stats {
	return Stats{
		Dispatcher: r.dispatcher.Stats(),
		Published:  r.published.Load(),
		Failed:     r.failed.Load(),
	}
}

// Done is closed when the consumer exits.
func (r *Relay) Done() <-chan struct{} { return r.dispatcher.Done() }

// Close flushes and closes the writer. Stop the consumer through its context
// first.
func (r *Relay) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.writer.Close()
}
