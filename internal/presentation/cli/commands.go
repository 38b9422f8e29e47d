package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"barcode-scanner/internal/application"
	"barcode-scanner/internal/config"
	"barcode-scanner/internal/domain"
)

// Publisher отправляет результаты сканирования на сервер
type Publisher interface {
	Run(ctx context.Context, results <-chan domain.ScanResult) error
}

// Infrastructure фабрики инфраструктурных компонентов; заполняется в cmd
type Infrastructure struct {
	Logger     func(cfg config.LogConfig) application.Logger
	Devices    func(logger application.Logger) application.MediaDevices
	Sink       func(logger application.Logger) application.VideoSink
	NewDecoder func(cfg config.ScannerConfig, logger application.Logger) (func() application.FrameDecoder, error)
	Publisher  func(url string, logger application.Logger, debug bool) Publisher
}

// CLI представляет CLI интерфейс приложения
type CLI struct {
	infra      Infrastructure
	viper      *viper.Viper
	configFile string
	config     *config.Config
	logger     application.Logger
	out        io.Writer
	errOut     io.Writer
}

// NewCLI создает новый CLI интерфейс
func NewCLI(infra Infrastructure) *CLI {
	return &CLI{
		infra: infra,
		viper: config.New(),
	}
}

// NewRootCmd создает корневую команду
func (c *CLI) NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "barcode-scanner",
		Short:         "Сканирование штрихкодов с камеры",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "файл конфигурации (yaml, toml, json)")
	flags.String("log-level", "info", "уровень логирования: trace, debug, info, warn, error")
	flags.String("log-format", "console", "формат логов: console или json")
	_ = c.viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = c.viper.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(c.newScanCmd(), c.newDevicesCmd())
	return root
}

// Execute запускает CLI
func (c *CLI) Execute(ctx context.Context) error {
	return c.NewRootCmd().ExecuteContext(ctx)
}

func (c *CLI) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.viper, c.configFile)
	if err != nil {
		return err
	}
	c.config = cfg
	c.logger = c.infra.Logger(cfg.Log)
	c.out = cmd.OutOrStdout()
	c.errOut = cmd.ErrOrStderr()
	return nil
}

// newDevicesCmd выводит список доступных устройств
func (c *CLI) newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Показать список доступных камер",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := application.NewDeviceService(c.infra.Devices(c.logger), c.logger).ListDevices()
			if err != nil {
				return err
			}

			fmt.Fprintln(c.out, "Доступные устройства:")
			for i, device := range devices {
				fmt.Fprintf(c.out, "[%d] %s (%s) id=%s\n", i, device.Label, device.Kind, device.ID)
			}
			return nil
		},
	}
}
