package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/trickstertwo/xlog"
	"golang.org/x/sync/errgroup"
)

const maxEventSize = 64 << 10

// received is one event as seen by the collector.
type received struct {
	Source   string
	Portal   string
	Time     string
	DebugPin string
	Body     []byte
}

type sink func(received)

func newCollectCmd() *cobra.Command {
	var httpAddr, udpAddr string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Receive events over HTTP and UDP and log them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.Collect.HTTPAddr = httpAddr
			}
			if udpAddr != "" {
				cfg.Collect.UDPAddr = udpAddr
			}
			logger := newLogger(cfg, "collect")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCollect(ctx, cfg.Collect, logger, logSink(logger))
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides collect.http_addr)")
	cmd.Flags().StringVar(&udpAddr, "udp", "", "UDP listen address (overrides collect.udp_addr)")
	return cmd
}

func logSink(logger *xlog.Logger) sink {
	return func(ev received) {
		logger.Info().
			Str("source", ev.Source).
			Str("portal", ev.Portal).
			Str("local_time", ev.Time).
			Str("debug_pin", ev.DebugPin).
			Str("body", string(ev.Body)).
			Msg("event received")
	}
}

func runCollect(ctx context.Context, cfg CollectConfig, logger *xlog.Logger, out sink) error {
	// Bind UDP first so a bad address fails before anything is running.
	var pc net.PacketConn
	if cfg.UDPAddr != "" {
		var err error
		if pc, err = net.ListenPacket("udp", cfg.UDPAddr); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           newCollectRouter(logger, out),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.HTTPAddr).Msg("collecting over HTTP")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if pc != nil {
		g.Go(func() error {
			<-ctx.Done()
			return pc.Close()
		})
		g.Go(func() error {
			logger.Info().Str("addr", pc.LocalAddr().String()).Msg("collecting over UDP")
			return serveUDP(ctx, pc, logger, out)
		})
	}

	return g.Wait()
}

func newCollectRouter(logger *xlog.Logger, out sink) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/*", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxEventSize+1))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(body) > maxEventSize {
			http.Error(w, "event too large", http.StatusRequestEntityTooLarge)
			return
		}
		if !json.Valid(body) {
			logger.Warn().Str("portal", req.Header.Get("X-Portal")).Msg("rejecting malformed event")
			http.Error(w, "body must be a JSON document", http.StatusBadRequest)
			return
		}
		out(received{
			Source:   "http",
			Portal:   req.Header.Get("X-Portal"),
			Time:     req.Header.Get("X-Local-Time"),
			DebugPin: req.Header.Get("X-Debug-Pin"),
			Body:     body,
		})
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// serveUDP reads one event per datagram until pc is closed.
func serveUDP(ctx context.Context, pc net.PacketConn, logger *xlog.Logger, out sink) error {
	buf := make([]byte, maxEventSize)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		body := append([]byte(nil), buf[:n]...)

		var meta struct {
			Portal   string           `json:"portal"`
			Time     json.Number      `json:"time"`
			DebugPin *json.RawMessage `json:"debug_pin"`
		}
		if err := json.Unmarshal(body, &meta); err != nil {
			logger.Warn().Str("from", from.String()).Err(err).Msg("rejecting malformed datagram")
			continue
		}
		ev := received{Source: "udp", Portal: meta.Portal, Time: meta.Time.String(), Body: body}
		if meta.DebugPin != nil {
			ev.DebugPin = string(*meta.DebugPin)
		}
		out(ev)
	}
}
