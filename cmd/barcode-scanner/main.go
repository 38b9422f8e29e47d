package main

import (
	"context"
	"fmt"
	"os"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/config"
	"barcode-scanner/internal/infrastructure/camera"
	"barcode-scanner/internal/infrastructure/decoder"
	"barcode-scanner/internal/infrastructure/logger"
	"barcode-scanner/internal/infrastructure/streaming"
	"barcode-scanner/internal/infrastructure/video"
	"barcode-scanner/internal/presentation/cli"
)

func main() {
	// Инфраструктурные компоненты создаются после чтения конфигурации
	infra := cli.Infrastructure{
		Logger: func(cfg config.LogConfig) application.Logger {
			return logger.New(logger.Config{Level: cfg.Level, Format: cfg.Format})
		},
		Devices: func(log application.Logger) application.MediaDevices {
			return camera.NewMediaDevicesManager(log)
		},
		Sink: func(log application.Logger) application.VideoSink {
			return video.NewElement(log)
		},
		NewDecoder: func(cfg config.ScannerConfig, log application.Logger) (func() application.FrameDecoder, error) {
			return decoder.Factory(decoder.Config{
				Formats:      cfg.Formats,
				TryHarder:    cfg.TryHarder,
				ScanInterval: cfg.ScanInterval,
			}, log)
		},
		Publisher: func(url string, log application.Logger, debug bool) cli.Publisher {
			return streaming.NewWebSocketPublisher(url, log, debug)
		},
	}

	if err := cli.NewCLI(infra).Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
