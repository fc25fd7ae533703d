package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"post-archivist/internal/config"
	"post-archivist/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	appCfg  config.Config
)

// envKeys are bound explicitly so they apply even without a config file.
var envKeys = []string{
	"app.log_level",
	"app.log_format",
	"x.base_url",
	"x.bearer_token",
	"x.user_id",
	"x.username",
	"output.dir",
	"cache.backend",
	"cache.dir",
	"redis.addr",
	"redis.username",
	"redis.password",
	"media.disabled",
	"schedule.cron",
}

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:          "post-archivist",
	Short:        "Archive X posts as daily markdown documents",
	Long:         "Fetches a user's posts from the X API, groups them into threads and writes one markdown document per day.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	v := viper.GetViper()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/post-archivist")
		v.AddConfigPath("configs")
	}

	v.SetEnvPrefix("ARCHIVIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}

	appCfg.FillDefaults()
	logging.Init(appCfg.App.LogLevel, appCfg.App.LogFormat)
}

// GetConfig exposes the loaded configuration to subcommands.
func GetConfig() config.Config {
	return appCfg
}
