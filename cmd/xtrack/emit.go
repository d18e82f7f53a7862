package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xtrack"
	"github.com/trickstertwo/xtrack/adapter/kafkarelay"
	"github.com/trickstertwo/xtrack/adapter/memory"
	"github.com/trickstertwo/xtrack/adapter/redisstream"
)

type emitFlags struct {
	relay    string
	url      string
	addr     string
	event    string
	portal   string
	count    int
	debugPin int32
	wait     time.Duration
	linger   time.Duration
}

// iterationEvent is the payload the example programs have always sent.
type iterationEvent struct {
	Iteration int `json:"iteration"`
}

func newEmitCmd() *cobra.Command {
	var f emitFlags
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Track a run of numbered events through a relay",
		Long: `Installs the selected relay as the process relay and tracks --count events
named --event, each carrying {"iteration": i}. Delivery is asynchronous, so emit
waits up to --wait for the relay's queue to empty before exiting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyEmitFlags(&cfg, f)
			logger := newLogger(cfg, "emit")
			return runEmit(cmd.Context(), cfg, f, logger)
		},
	}
	cmd.Flags().StringVarP(&f.relay, "relay", "r", "", "relay name (see `xtrack relays`)")
	cmd.Flags().StringVar(&f.url, "url", "", "collector URL for the http relay")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listener address for the udp relay")
	cmd.Flags().StringVar(&f.event, "event", "event", "event name")
	cmd.Flags().StringVarP(&f.portal, "portal", "p", "", "portal for every event")
	cmd.Flags().IntVarP(&f.count, "count", "n", 1000, "number of events")
	cmd.Flags().Int32Var(&f.debugPin, "debug-pin", 0, "debug pin attached to every event")
	cmd.Flags().DurationVar(&f.wait, "wait", 10*time.Second, "how long to wait for the queue to drain")
	cmd.Flags().DurationVar(&f.linger, "linger", 250*time.Millisecond, "extra time for the last in-flight send")
	return cmd
}

func applyEmitFlags(cfg *Config, f emitFlags) {
	if f.relay != "" {
		cfg.Relay = f.relay
	}
	if f.url != "" {
		cfg.HTTP.URL = f.url
	}
	if f.addr != "" {
		cfg.UDP.Addr = f.addr
	}
	if f.portal != "" {
		cfg.Portal = f.portal
	}
}

func runEmit(ctx context.Context, cfg Config, f emitFlags, logger *xlog.Logger) error {
	b := xtrack.NewRelayBuilder().
		WithRelay(cfg.Relay, cfg.RelayConfig()).
		WithLogger(logger)
	if cfg.LogDebug {
		b = b.WithObserver(xtrack.LoggingObserver{Logger: logger})
	}
	relay, err := b.Install()
	if err != nil {
		return fmt.Errorf("install %s relay: %w", cfg.Relay, err)
	}

	var opts []xtrack.EventOption
	if f.debugPin != 0 {
		opts = append(opts, xtrack.WithDebugPin(f.debugPin))
	}

	failed := 0
	for i := 1; i <= f.count; i++ {
		e := xtrack.NewEvent(f.event, cfg.Portal, iterationEvent{Iteration: i}, opts...)
		if err := xtrack.Track(e); err != nil {
			failed++
			logger.Error().Err(err).Msg("couldn't track an event")
		}
	}

	drained := waitDrained(ctx, relay, f.wait)
	if drained {
		time.Sleep(f.linger)
	}
	logger.Info().
		Str("relay", cfg.Relay).
		Str("tracked", strconv.Itoa(f.count-failed)).
		Str("drained", strconv.FormatBool(drained)).
		Msg("emit finished")

	if c, ok := xtrack.Unwrap(relay).(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("couldn't close relay")
		}
	}
	return nil
}

// waitDrained polls the relay's dispatcher until nothing is pending or timeout
// elapses. Relays without a dispatcher count as drained.
func waitDrained(ctx context.Context, relay xtrack.Relay, timeout time.Duration) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		pending, ok := pendingOf(relay)
		if !ok || pending == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-tick.C:
		}
	}
}

func pendingOf(relay xtrack.Relay) (int, bool) {
	switch r := xtrack.Unwrap(relay).(type) {
	case interface{ Stats() xtrack.DispatcherStats }:
		return r.Stats().Pending, true
	case *redisstream.Relay:
		return r.Stats().Dispatcher.Pending, true
	case *kafkarelay.Relay:
		return r.Stats().Dispatcher.Pending, true
	case *memory.Relay:
		return r.Stats().Dispatcher.Pending, true
	default:
		return 0, false
	}
}
