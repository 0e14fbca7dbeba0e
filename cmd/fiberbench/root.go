package main

import (
	"fmt"
	"strings"

	"github.com/joeycumines/go-fiber/config"
	"github.com/joeycumines/go-fiber/fiber"
	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "FIBERBENCH"

var logger *logiface.Logger[logiface.Event]

var rootCmd = &cobra.Command{
	Use:   "fiberbench",
	Short: "Fiber scheduler workload runner",
	Long: `fiberbench embeds an N:M fiber scheduler, runs a configurable
workload of cooperatively yielding fibers on it, and prints the
scheduler's metrics.

Settings are read from a YAML config file, FIBERBENCH_* environment
variables (e.g. FIBERBENCH_BENCH_THREADS for bench.threads), and flags,
in increasing order of precedence.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warning, err, crit)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

// initConfig merges the config file, environment and flags with viper, then
// loads the result into the config store, where the fiber package and the
// bench settings read it from.
func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// AutomaticEnv only applies to keys viper already knows
	config.Default.Visit(func(e config.Entry) {
		_ = viper.BindEnv(e.Name())
	})

	if err := config.Default.LoadMap(viper.AllSettings()); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := parseLevel(viper.GetString("log.level"))
	if err != nil {
		return err
	}
	logger = fiber.NewDefaultLogger(cmd.ErrOrStderr(), level)
	fiber.SetLogger(logger)
	return nil
}

func parseLevel(s string) (logiface.Level, error) {
	if strings.EqualFold(s, "error") {
		return logiface.LevelError, nil
	}
	for _, level := range []logiface.Level{
		logiface.LevelDisabled,
		logiface.LevelCritical,
		logiface.LevelError,
		logiface.LevelWarning,
		logiface.LevelNotice,
		logiface.LevelInformational,
		logiface.LevelDebug,
		logiface.LevelTrace,
	} {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
