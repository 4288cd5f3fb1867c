package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dylantcon/dgmt/internal/config"
	"github.com/dylantcon/dgmt/internal/daemon"
	"github.com/dylantcon/dgmt/internal/utils"
	"github.com/dylantcon/dgmt/internal/version"
)

const configFileName = "config"

var cyan = color.New(color.FgHiCyan).SprintFunc()

var rootCmd = &cobra.Command{
	Use:     "dgmt",
	Short:   "dgmt sync daemon",
	Long:    "dgmt keeps local directories synchronized with a cloud remote via rclone\nand supervises a companion Syncthing process.",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := effectiveConfig()
		if err != nil {
			return err
		}
		// invalid config is the only fatal error class
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		// all good now, show header
		cmd.SilenceUsage = true
		if err := setupLogging(cfg); err != nil {
			return err
		}
		showHeader(cfg)

		defer slog.Info("Bye!")
		return daemon.New(cfg).Start(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "dgmt config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(config.DefaultConfigDir)
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("DGMT")
	viper.AutomaticEnv()

	return nil
}

// effectiveConfig layers the viper state (config file + DGMT_* env) over the
// documented defaults.
func effectiveConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	cfg.Path = viper.ConfigFileUsed()
	return cfg, nil
}

// setupLogging installs the default slog logger: a colored console handler
// plus a `[timestamp] LEVEL: message` line handler on the rotating log file.
func setupLogging(cfg *config.Config) error {
	level := cfg.SlogLevel()

	handlers := []slog.Handler{
		tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
		}),
	}

	if cfg.LogFile != "" {
		if err := utils.EnsureParent(cfg.LogFile); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		handlers = append(handlers, utils.NewLineLogHandler(fileWriter, level))
	}

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(handlers...)))
	return nil
}

func showHeader(cfg *config.Config) {
	color.New(color.FgHiCyan, color.Bold).Printf("dgmt %s\n", version.Short())
	fmt.Printf("%s %s\n", cyan("Watching:"), strings.Join(cfg.WatchPaths, ", "))
	fmt.Printf("%s %s:%s\n", cyan("Remote:"), cfg.RcloneRemote, cfg.RcloneDest)
	if cfg.Path != "" {
		fmt.Printf("%s %s\n", cyan("Config:"), cfg.Path)
	}
	fmt.Println()
}
