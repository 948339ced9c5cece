package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obfs2relay/obfs2relay/events"
	"github.com/obfs2relay/obfs2relay/internal/config"
	"github.com/obfs2relay/obfs2relay/internal/utils"
	"github.com/obfs2relay/obfs2relay/obfsrelay"
	"github.com/obfs2relay/obfs2relay/obfsrelay/logging"
	"github.com/obfs2relay/obfs2relay/stats"
)

// Run starts the relay and blocks until it receives SIGINT/SIGTERM.
type Run struct {
	ConfigPath string `kong:"arg,required,type='existingfile',help='Path to the JSON config file.',name='config-path'"` //nolint: lll
}

func (r Run) Run(cli *CLI, version string) error {
	conf, err := config.Read(r.ConfigPath)
	if err != nil {
		return fmt.Errorf("cannot read config: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	users, err := conf.UserTable()
	if err != nil {
		return fmt.Errorf("cannot build user table: %w", err)
	}

	logger := logging.New(conf.LogLevel).Named("obfs2relay")
	logger.Info(fmt.Sprintf("starting obfs2relay %s with config %s", version, conf.String()))

	promFactory := stats.NewFactory("obfs2relay")
	eventStream := events.New(promFactory.NewObserverFactory())

	proxy, err := obfsrelay.NewProxy(
		users,
		obfsrelay.WithLogger(logger),
		obfsrelay.WithEventStream(eventStream),
		obfsrelay.WithConfig(conf.ProxyConfig()),
	)
	if err != nil {
		return fmt.Errorf("cannot build proxy: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := utils.ListenAll(conf.BindAddresses()...)
	if err != nil {
		return fmt.Errorf("cannot start listener: %w", err)
	}

	if conf.Prometheus.Enabled {
		go func() {
			if err := promFactory.Serve(ctx, conf.Prometheus.BindTo.Get("")); err != nil {
				logger.WarningError("prometheus server stopped", err)
			}
		}()
	}

	if period := conf.StatsPrintInterval(); period > 0 {
		go printStats(ctx, logger, proxy.Stats(), period)
	}

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- proxy.Serve(ctx, listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.WarningError("listener stopped unexpectedly", err)
		}
	}

	listener.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return proxy.Shutdown(shutdownCtx)
}

func printStats(ctx context.Context, logger obfsrelay.Logger, registry *obfsrelay.StatsRegistry, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snap := range registry.Snapshot() {
				logger.BindStr("user", snap.User).Info(fmt.Sprintf(
					"connects=%d current=%d octets=%d",
					snap.Connects, snap.CurrentConnections, snap.Octets,
				))
			}
		}
	}
}
