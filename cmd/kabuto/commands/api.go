package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/morita/kabuto/internal/api"
	"github.com/morita/kabuto/internal/api/handlers"
)

// apiCmd starts the HTTP API server
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "APIサーバーを起動",
	Long: `保存済みレポートを提供する HTTP API を起動します。
POST /api/digest/run で手動実行もできます。

Endpoints:
  GET  /health
  GET  /api/digest?limit=N
  GET  /api/digest/latest
  GET  /api/digest/{date}
  POST /api/digest/run?date=YYYY-MM-DD`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := initPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		digestHandler := handlers.NewDigestHandler(p.repo, p.orchestrator, p.log)
		router := api.NewRouter(digestHandler, p.log)
		server := api.New(p.cfg, p.log, router)

		// Run server in a goroutine so we can handle signals
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		printSuccess("API server listening on :%s", p.cfg.Port)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			fmt.Println()
			printInfo("Received %s, shutting down...", sig)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return err
		}

		printSuccess("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
}
