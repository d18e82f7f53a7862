// Package httprelay ships events to an HTTP collector, one POST per event.
//
// Requests are sent by the dispatcher's single consumer, one at a time, so the
// collector sees events in the order they were tracked. Throughput is bounded by
// the collector's round-trip time.
package httprelay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xtrack"
)

const RelayName = "http"

// Platform is sent in the X-Platform header.
const Platform = "web"

// maxErrorBody bounds how much of a failed response is read into the log.
const maxErrorBody = 4 << 10

func init() {
	if err := xtrack.RegisterRelay(RelayName, func(cfg map[string]any, opts ...xtrack.Option) (xtrack.Relay, error) {
		return New(ConfigFromMap(cfg), opts...)
	}); err != nil {
		panic(fmt.Errorf("xtrack/httprelay: failed to register relay: %w", err))
	}
}

// Relay posts each event to a fixed URL.
type Relay struct {
	url        string
	client     *http.Client
	dispatcher *xtrack.Dispatcher
	logger     *xlog.Logger
	clock      xclock.Clock
}

var (
	_ xtrack.Relay   = (*Relay)(nil)
	_ xtrack.Starter = (*Relay)(nil)
)

// New validates cfg and builds a relay. Nothing is sent until Start.
func New(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := xtrack.BuildOptions(opts...)
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Relay{
		url:        cfg.URL,
		client:     client,
		dispatcher: xtrack.NewDispatcher(RelayName, cfg.QueueSize, opts...),
		logger:     o.Logger,
		clock:      o.Clock,
	}, nil
}

// Use builds a relay and installs it as the process relay.
func Use(cfg Config, opts ...xtrack.Option) (*Relay, error) {
	r, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := xtrack.SetRelay(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Transport enqueues the event; it never blocks.
func (r *Relay) Transport(meta xtrack.Metadata, payload []byte) {
	r.dispatcher.Enqueue(xtrack.Message{Metadata: meta, Payload: payload})
}

// Start launches the consumer that performs the requests.
func (r *Relay) Start(ctx context.Context) {
	r.dispatcher.Start(ctx, r.send)
}

// Stats exposes the dispatcher counters.
func (r *Relay) Stats() xtrack.DispatcherStats { return r.dispatcher.Stats() }

// Done is closed when the consumer exits.
func (r *Relay) Done() <-chan struct{} { return r.dispatcher.Done() }

func (r *Relay) send(ctx context.Context, msg xtrack.Message) {
	start := r.clock.Now()
	err := r.post(ctx, msg)
	r.dispatcher.ReportSend(msg.Metadata, r.clock.Since(start), err)
}

func (r *Relay) post(ctx context.Context, msg xtrack.Message) error {
	req, err := newRequest(ctx, r.url, msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("xtrack: couldn't build HTTP request")
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error().
			Str("event", msg.Metadata.Event).
			Err(err).
			Msg("xtrack: couldn't send data to HTTP relay")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			body = []byte(readErr.Error())
		}
		r.logger.Error().
			Str("event", msg.Metadata.Event).
			Str("status_code", strconv.Itoa(resp.StatusCode)).
			Str("error", string(body)).
			Msg("xtrack: couldn't complete HTTP request successfully")
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

func newRequest(ctx context.Context, url string, msg xtrack.Message) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Payload))
	if err != nil {
		return nil, err
	}
	md := msg.Metadata
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Local-Time", strconv.FormatUint(md.Time, 10))
	req.Header.Set("X-Platform", Platform)
	req.Header.Set("X-Portal", md.Portal)
	if md.DebugPin != nil {
		req.Header.Set("X-Debug-Pin", strconv.FormatInt(int64(*md.DebugPin), 10))
	}
	return req, nil
}
