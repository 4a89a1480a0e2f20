package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defCfgPath = "/etc/playgate/"
	envPrefix  = "PLAYGATE" // PLAYGATE_STORAGE_BUCKET sets storage.bucket
)

var rootCmd = &cobra.Command{
	Use:     "playgate",
	Short:   "Playback delivery gateway.",
	Long:    `Playback gateway serving sessions and rewritten HLS manifests from object storage.`,
	Version: "1.0.0",
}

// onConfigLoad runs after the first load and after every config file change.
var onConfigLoad []func()

func init() {
	var cfgFile string
	var logConfig logConfig

	applyConfig := func() {
		logConfig.Set()
		initLogging(logConfig)

		for _, loadConfig := range onConfigLoad {
			loadConfig()
		}
	}

	cobra.OnInitialize(func() {
		readConfiguration(cfgFile)

		file := viper.ConfigFileUsed()
		if file == "" {
			applyConfig()
			log.Warn().Msg("running without config file, flags and environment only")
			return
		}

		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Info().Str("op", e.Op.String()).Str("config", file).Msg("config file changed")
			applyConfig()
		})
		viper.WatchConfig()

		applyConfig()
		log.Info().Str("config", file).Msg("config file loaded")
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	_ = logConfig.Init(rootCmd)
}

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

func Execute() error {
	return rootCmd.Execute()
}

// readConfiguration reads cfgFile, or config.* from defCfgPath and the
// working directory. A missing default file is not an error.
func readConfiguration(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		if runtime.GOOS == "linux" {
			viper.AddConfigPath(defCfgPath)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
}
