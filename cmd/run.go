package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/posebridge/internal/bridge"
	"firestige.xyz/posebridge/internal/config"
	"firestige.xyz/posebridge/internal/log"
	"firestige.xyz/posebridge/internal/metrics"
	"firestige.xyz/posebridge/internal/provider"
)

// statusEvery is how often the consumer logs a status line.
const statusEvery = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge and a polling consumer",
	Long: `Compose the configured provider and poll it once per consumer tick until the
producer goes away or the process receives SIGINT/SIGTERM.

In dial mode one connection is made to the producer. In listen mode every incoming
producer connection gets its own queue, forwarder and consumer.

Examples:
  posebridge run -c posebridge.yml
  POSEBRIDGE_PROVIDER_KIND=synthetic posebridge run`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBridge(cmd.Context()); err != nil {
			slog.Error("posebridge failed", "error", err)
			os.Exit(1)
		}
	},
}

func runBridge(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				slog.Warn("metrics server stop failed", "error", err)
			}
		}()
	}

	return serve(ctx, cfg)
}

// serve composes the provider and consumes it until ctx ends or the
// producer is gone.
func serve(ctx context.Context, cfg *config.GlobalConfig) error {
	bc := cfg.Bridge()
	tick := cfg.Consumer.Tick

	if bc.Provider.Kind == provider.KindQueue && bc.Transport.Mode == config.ModeListen {
		return bridge.Serve(ctx, bc, func(s *bridge.Session) {
			defer s.Close()
			consume(ctx, s, tick)
		})
	}

	s, err := bridge.Open(ctx, bc)
	if err != nil {
		return err
	}
	defer s.Close()

	consume(ctx, s, tick)
	return nil
}

// consume polls the session once per tick, keeping the last known pose.
// It returns when ctx ends or the session is exhausted.
func consume(ctx context.Context, s *bridge.Session, tick time.Duration) {
	tracker := provider.NewTracker(s.Provider)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var (
		ticks, fresh int
		lastStatus   = time.Now()
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("consumer stopped", "session", s.ID, "ticks", ticks, "fresh", fresh)
			return
		case <-ticker.C:
		}

		ticks++
		if tracker.Update() {
			fresh++
			r, _ := tracker.Latest()
			attrs := []any{"session", s.ID, "landmarks", r.Len()}
			if r.Len() > 0 {
				attrs = append(attrs, "x0", r.Landmarks[0].X, "y0", r.Landmarks[0].Y)
			}
			slog.Debug("pose", attrs...)
		}

		if s.Exhausted() {
			slog.Info("producer gone, consumer stopped", "session", s.ID, "ticks", ticks, "fresh", fresh, "stats", s.Stats())
			return
		}

		if time.Since(lastStatus) >= statusEvery {
			_, known := tracker.Latest()
			slog.Info("consumer status", "session", s.ID, "remote", s.Remote, "ticks", ticks, "fresh", fresh, "has_pose", known, "stats", s.Stats())
			lastStatus = time.Now()
		}
	}
}
