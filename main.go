package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tr1v3r/pkg/log"
	"github.com/urfave/cli/v3"

	"github.com/tr1v3r/rctl/internal/config"
	"github.com/tr1v3r/rctl/internal/discovery"
	"github.com/tr1v3r/rctl/internal/dlna"
	"github.com/tr1v3r/rctl/internal/httpclient"
	"github.com/tr1v3r/rctl/internal/monitoring"
	"github.com/tr1v3r/rctl/internal/ssdp"
	"github.com/tr1v3r/rctl/internal/upnp"
	"github.com/tr1v3r/rctl/internal/uuid"
)

const userAgent = "Linux/6 UPnP/2.0 rctl/1.0"

func main() {
	os.Exit(run())
}

func run() int {
	defer log.Close()

	// 优雅退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "rctl",
		Usage: "discover and control DLNA media servers and renderers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging", Sources: cli.EnvVars("RCTL_DEBUG")},
			&cli.StringFlag{Name: "interface", Aliases: []string{"i"}, Usage: "network interface used for SSDP"},
			&cli.DurationFlag{Name: "window", Aliases: []string{"w"}, Usage: "M-SEARCH response window, 1s to 5s"},
			&cli.DurationFlag{Name: "timeout", Usage: "HTTP timeout for descriptions and actions"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("debug") {
				monitoring.GetMetrics().LogMetrics()
			}
			return nil
		},
		Commands: []*cli.Command{
			discoverCommand(),
			devicesCommand(),
			browseCommand(),
			searchCommand(),
			playCommand(),
			transportCommand("pause", "pause playback", (*dlna.MediaRenderer).Pause),
			transportCommand("stop", "stop playback", (*dlna.MediaRenderer).Stop),
			statusCommand(),
			volumeCommand(),
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error("rctl: %v", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// loadConfig applies the global flags on top of the environment.
func loadConfig(cmd *cli.Command) config.Config {
	cfg := config.Load()
	if v := cmd.String("interface"); v != "" {
		cfg.Interface = v
	}
	if v := cmd.Duration("window"); v > 0 {
		cfg.SearchWindow = max(time.Second, min(v, 5*time.Second))
	}
	if v := cmd.Duration("timeout"); v > 0 {
		cfg.HTTPTimeout = v
	}
	return cfg
}

// newEngine wires the SSDP transport and description fetcher into a
// discovery engine. The engine is not started.
func newEngine(cfg config.Config) *discovery.Engine {
	// 控制点 UUID
	cpUUID, err := uuid.LoadOrCreate(cfg.UUIDPath)
	if err != nil {
		log.Info("warning: control point uuid not persisted: %v", err)
	}

	transport := &ssdp.Transport{
		Interface:        cfg.Interface,
		UserAgent:        userAgent,
		FriendlyName:     cfg.FriendlyName,
		ControlPointUUID: cpUUID,
	}
	client := upnp.NewClient(httpclient.New(cfg.HTTPTimeout), userAgent)

	return discovery.New(discovery.Config{
		SearchTarget:  cfg.SearchTarget,
		SearchWindow:  cfg.SearchWindow,
		DefaultMaxAge: cfg.DefaultMaxAge,
	}, transport, upnp.NewFetcher(client))
}

// settle starts eng and waits for one search window, leaving a short grace
// period for the last description fetches.
func settle(ctx context.Context, eng *discovery.Engine, window time.Duration) error {
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(window + 500*time.Millisecond):
		return nil
	}
}
