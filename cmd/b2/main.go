package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/b2kit/b2go/b2"
	"github.com/b2kit/b2go/internal/version"
)

var (
	home, _          = os.UserHomeDir()
	defaultConfigDir = filepath.Join(home, ".b2go")
	configFileName   = "config"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "b2",
	Short:         "Backblaze B2 command line client",
	Version:       version.Detailed(),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", filepath.Join(defaultConfigDir, configFileName+".json"), "config file")
	rootCmd.PersistentFlags().String("key-id", "", "application key id")
	rootCmd.PersistentFlags().String("app-key", "", "application key")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
}

func main() {
	level := slog.LevelInfo
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			level = slog.LevelDebug
		}
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(defaultConfigDir)
		viper.AddConfigPath(filepath.Join(home, ".config/b2go"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("key_id", cmd.Flags().Lookup("key-id"))
	viper.BindPFlag("application_key", cmd.Flags().Lookup("app-key"))

	viper.SetEnvPrefix("B2GO")
	viper.AutomaticEnv()

	return nil
}

// newClient authorizes against the service with the configured key pair.
// Callers own Close.
func newClient(ctx context.Context) (*b2.Client, error) {
	keyID := viper.GetString("key_id")
	appKey := viper.GetString("application_key")
	if keyID == "" || appKey == "" {
		return nil, errors.New("credentials missing: run 'b2 auth' or set B2GO_KEY_ID and B2GO_APPLICATION_KEY")
	}
	return b2.New(ctx, keyID, appKey)
}
