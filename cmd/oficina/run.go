package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled alerts and serve metrics until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, c, err := bootstrap(ctx, true)
		if err != nil {
			return err
		}
		defer c.Close()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.InfoCF("main", "Serving metrics", map[string]interface{}{"addr": cfg.Metrics.Addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorCF("main", "Metrics server stopped", map[string]interface{}{"error": err.Error()})
			}
		}()

		c.EventBus.Publish(domain.NewEvent(domain.EventSystemStartup, "", nil))
		if cfg.Jobs.Enabled {
			if err := c.Scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		} else {
			<-ctx.Done()
		}
		c.EventBus.Publish(domain.NewEvent(domain.EventSystemShutdown, "", nil))

		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	},
}
