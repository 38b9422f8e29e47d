package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"barcode-scanner/internal/domain"
)

// EnvPrefix префикс переменных окружения: SCANNER_CAMERA_WIDTH и т.д.
const EnvPrefix = "SCANNER"

// Config конфигурация приложения
type Config struct {
	Camera  CameraConfig  `mapstructure:"camera"`
	Scanner ScannerConfig `mapstructure:"scanner"`
	Publish PublishConfig `mapstructure:"publish"`
	Log     LogConfig     `mapstructure:"log"`
}

// CameraConfig параметры камеры
type CameraConfig struct {
	Device string `mapstructure:"device"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Facing string `mapstructure:"facing"`
}

// ScannerConfig параметры распознавания
type ScannerConfig struct {
	StartDelay   time.Duration `mapstructure:"start_delay"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	ScanInterval time.Duration `mapstructure:"scan_interval"`
	Formats      []string      `mapstructure:"formats"`
	TryHarder    bool          `mapstructure:"try_harder"`
	Once         bool          `mapstructure:"once"`
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
}

// PublishConfig адрес сервера для публикации результатов; пусто - не публиковать
type PublishConfig struct {
	URL string `mapstructure:"url"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults регистрирует значения по умолчанию
func SetDefaults(v *viper.Viper) {
	v.SetDefault("camera.device", "")
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)
	v.SetDefault("camera.facing", domain.FacingEnvironment)

	v.SetDefault("scanner.start_delay", 500*time.Millisecond)
	v.SetDefault("scanner.retry_delay", time.Second)
	v.SetDefault("scanner.scan_interval", 100*time.Millisecond)
	v.SetDefault("scanner.formats", []string{})
	v.SetDefault("scanner.try_harder", true)
	v.SetDefault("scanner.once", false)
	v.SetDefault("scanner.dedupe_window", time.Duration(0))

	v.SetDefault("publish.url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// New создает viper с умолчаниями и чтением окружения
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load читает файл конфигурации (если задан) и собирает Config
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения
func (c *Config) Validate() error {
	var errs []error
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		errs = append(errs, errors.New("camera.width и camera.height не могут быть отрицательными"))
	}
	switch c.Camera.Facing {
	case "", domain.FacingEnvironment, "user":
	default:
		errs = append(errs, fmt.Errorf("camera.facing должен быть environment или user, получено %q", c.Camera.Facing))
	}
	if c.Scanner.StartDelay < 0 || c.Scanner.RetryDelay < 0 || c.Scanner.DedupeWindow < 0 {
		errs = append(errs, errors.New("задержки scanner.*_delay и scanner.dedupe_window не могут быть отрицательными"))
	}
	return errors.Join(errs...)
}

// Constraints ограничения видеопотока из настроек камеры
func (c *Config) Constraints() domain.VideoConstraints {
	return domain.VideoConstraints{
		Width:      c.Camera.Width,
		Height:     c.Camera.Height,
		FacingMode: c.Camera.Facing,
		DeviceID:   c.Camera.Device,
	}
}
