package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bdougie/swingvision/internal/conf"
	"github.com/bdougie/swingvision/internal/logging"
)

// app carries the state shared by every subcommand
type app struct {
	v          *viper.Viper
	configPath string
	settings   *conf.Settings
	logger     *slog.Logger
}

// RootCommand creates and returns the root command
func RootCommand() *cobra.Command {
	a := &app{v: conf.NewViper(), logger: logging.Discard()}

	rootCmd := &cobra.Command{
		Use:           "swingvision",
		Short:         "Golf swing analysis from video",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to swingvision.yaml")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("store", "", "Result store: file or postgres")
	flags.StringP("output", "o", "", "Output directory of the file store")
	flags.String("format", "", "File store format: json or yaml")

	a.bind(flags, map[string]string{
		"debug":     "debug",
		"log-level": "log.level",
		"store":     "storage.type",
		"output":    "storage.outputdir",
		"format":    "storage.format",
	})

	rootCmd.AddCommand(
		analyzeCommand(a),
		serveCommand(a),
		overlayCommand(a),
		searchCommand(a),
	)
	return rootCmd
}

// bind maps flag names to viper keys. Flags only override the configuration
// when set on the command line.
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

// initialize loads the settings and configures logging
func (a *app) initialize() error {
	settings, err := conf.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.settings = settings

	level := settings.Log.Level
	if settings.Debug {
		level = "debug"
	}
	a.logger = logging.New(os.Stderr, level)
	a.logger.Debug("configuration loaded", "file", a.v.ConfigFileUsed())
	return nil
}
