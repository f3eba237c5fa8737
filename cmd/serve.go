package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"LeadGrid-App/internal/handler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler, err := a.startScheduler(ctx)
	if err != nil {
		return err
	}
	defer scheduler.Close()

	go a.sweepOrphanedSearches(ctx)

	if a.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler.NewRouter(a.grids, a.deletion, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("🚀 LeadGrid server starting on :%s", a.cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Infof("🛑 シャットダウン中...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sweepOrphanedSearches searching のまま放置されたセルを定期的に戻す
func (a *app) sweepOrphanedSearches(ctx context.Context) {
	interval := a.cfg.Grid.SearchingTimeout / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.grids.ResetOrphanedSearching(ctx, a.cfg.Grid.SearchingTimeout); err != nil {
				a.logger.Errorf("❌ searching セルのリセットに失敗: %v", err)
			}
		}
	}
}
