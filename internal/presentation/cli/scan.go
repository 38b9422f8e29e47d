package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/domain"
)

func (c *CLI) newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Включить камеру и печатать распознанные коды",
		Long: "Включает камеру и печатает каждый распознанный код в отдельной строке.\n" +
			"SIGHUP повторяет запрос доступа к камере после отказа, SIGINT завершает работу.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runScan(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("device", "", "ID устройства камеры для использования")
	flags.Int("width", 640, "желаемая ширина видео")
	flags.Int("height", 480, "желаемая высота видео")
	flags.String("facing", domain.FacingEnvironment, "предпочтительная камера: environment или user")
	flags.StringSlice("formats", nil, "форматы штрихкодов, по умолчанию все поддерживаемые")
	flags.Duration("start-delay", 0, "пауза перед первым распознаванием")
	flags.Duration("scan-interval", 0, "пауза между кадрами распознавания")
	flags.Bool("once", false, "завершить после первого распознанного кода")
	flags.Duration("dedupe-window", 0, "не повторять один и тот же код в течение заданного времени")
	flags.String("publish", "", "адрес WebSocket сервера для публикации результатов")

	for key, name := range map[string]string{
		"camera.device":         "device",
		"camera.width":          "width",
		"camera.height":         "height",
		"camera.facing":         "facing",
		"scanner.formats":       "formats",
		"scanner.start_delay":   "start-delay",
		"scanner.scan_interval": "scan-interval",
		"scanner.once":          "once",
		"scanner.dedupe_window": "dedupe-window",
		"publish.url":           "publish",
	} {
		_ = c.viper.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

func (c *CLI) runScan(ctx context.Context) error {
	cfg := c.config
	log := c.logger

	newDecoder, err := c.infra.NewDecoder(cfg.Scanner, log)
	if err != nil {
		return err
	}

	devices := c.infra.Devices(log)
	if cfg.Camera.Device != "" {
		device, err := application.NewDeviceService(devices, log).FindDevice(cfg.Camera.Device)
		if err != nil {
			return fmt.Errorf("камера %s недоступна: %w", cfg.Camera.Device, err)
		}
		log.Info("Используется камера: %s", device.Label)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan domain.ScanResult, 16)
	dedupe := newDeduper(cfg.Scanner.DedupeWindow)

	scanner := application.NewBarcodeScanner(application.ScannerDeps{
		Devices:    devices,
		Sink:       c.infra.Sink(log),
		NewDecoder: newDecoder,
		Logger:     log,
	}, application.ScannerOptions{
		Constraints: cfg.Constraints(),
		StartDelay:  cfg.Scanner.StartDelay,
		RetryDelay:  cfg.Scanner.RetryDelay,
		OnResult: func(result domain.ScanResult) {
			if !dedupe.Allow(result.Text, result.ScannedAt) {
				return
			}
			select {
			case results <- result:
			default:
				log.Warn("Очередь результатов переполнена, код %s пропущен", result.Text)
			}
		},
		OnError: func(message string) {
			fmt.Fprintln(c.errOut, message)
		},
		OnStateChange: func(state domain.ScannerState) {
			log.Debug("Сканер: %s", state)
		},
	})
	defer scanner.Close()

	var published chan domain.ScanResult
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Publish.URL != "" {
		published = make(chan domain.ScanResult, 16)
		publisher := c.infra.Publisher(cfg.Publish.URL, log, cfg.Log.Level == "debug")
		// Публикатор дорабатывает очередь до закрытия канала
		g.Go(func() error {
			return publisher.Run(context.WithoutCancel(gctx), published)
		})
	}

	g.Go(func() error {
		if published != nil {
			defer close(published)
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case result := <-results:
				fmt.Fprintln(c.out, result.Text)
				if published != nil {
					published <- result
				}
				if cfg.Scanner.Once {
					cancel()
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case <-gctx.Done():
				scanner.SetActive(false)
				return nil
			case <-hup:
				log.Info("Повторный запрос доступа к камере")
				scanner.RetryPermission()
			}
		}
	})

	scanner.SetActive(true)
	return g.Wait()
}
