package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"barcode-scanner/internal/infrastructure/logger"
	"barcode-scanner/internal/relay"
)

func main() {
	var (
		port      int
		outputDir string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:          "scan-relay",
		Short:        "Сервер приема результатов сканирования",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(logger.Config{Level: logLevel, Format: "console"})

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           relay.NewServer(outputDir, log).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("Запуск сервера на порту %d...", port)
				log.Info("Статус сервера доступен по адресу http://localhost:%d", port)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "порт для запуска сервера")
	cmd.Flags().StringVar(&outputDir, "output", "recordings", "директория для сохранения записей")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "уровень логирования")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
