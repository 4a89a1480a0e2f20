package cmd

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type logConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	JSON       bool   `mapstructure:"json"`       // plain json on stderr instead of the console writer
	File       string `mapstructure:"file"`       // rotated file output, also on SIGHUP
	MaxAge     int    `mapstructure:"maxage"`     // days
	MaxSize    int    `mapstructure:"maxsize"`    // megabytes
	MaxBackups int    `mapstructure:"maxbackups"` // files
}

func (logConfig) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("log.level", "", "Set log level")
	if err := viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log.level")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("log.console", true, "Enable console logging")
	if err := viper.BindPFlag("log.console", cmd.PersistentFlags().Lookup("log.console")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("log.json", false, "Write console logs as JSON")
	if err := viper.BindPFlag("log.json", cmd.PersistentFlags().Lookup("log.json")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("log.file", "", "Enable file logging and specify its path")
	if err := viper.BindPFlag("log.file", cmd.PersistentFlags().Lookup("log.file")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxage", 0, "MaxAge the max age in days to keep a logfile")
	if err := viper.BindPFlag("log.maxage", cmd.PersistentFlags().Lookup("log.maxage")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxsize", 100, "MaxSize the max size in MB of the logfile before it's rolled")
	if err := viper.BindPFlag("log.maxsize", cmd.PersistentFlags().Lookup("log.maxsize")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("log.maxbackups", 0, "MaxBackups the max number of rolled files to keep")
	if err := viper.BindPFlag("log.maxbackups", cmd.PersistentFlags().Lookup("log.maxbackups")); err != nil {
		return err
	}

	return nil
}

func (c *logConfig) Set() {
	c.Level = viper.GetString("log.level")
	c.Console = viper.GetBool("log.console")
	c.JSON = viper.GetBool("log.json")
	c.File = viper.GetString("log.file")
	c.MaxAge = viper.GetInt("log.maxage")
	c.MaxSize = viper.GetInt("log.maxsize")
	c.MaxBackups = viper.GetInt("log.maxbackups")
}

var (
	logFileMu sync.Mutex
	logFile   *lumberjack.Logger
)

// logFileFor keeps one lumberjack logger per path across config reloads.
func logFileFor(config logConfig) *lumberjack.Logger {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil && logFile.Filename == config.File {
		logFile.MaxAge = config.MaxAge
		logFile.MaxSize = config.MaxSize
		logFile.MaxBackups = config.MaxBackups
		return logFile
	}

	if logFile != nil {
		_ = logFile.Close()
	} else {
		// rotate in response to SIGHUP
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGHUP)

		go func() {
			for range c {
				logFileMu.Lock()
				if logFile != nil {
					_ = logFile.Rotate()
				}
				logFileMu.Unlock()
			}
		}()
	}

	logFile = &lumberjack.Logger{
		Filename:   config.File,
		MaxAge:     config.MaxAge,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
	}
	return logFile
}

func initLogging(config logConfig) {
	var writers []io.Writer

	if config.Console {
		if config.JSON {
			writers = append(writers, os.Stderr)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out: os.Stderr,
			})
		}
	}

	if config.File != "" {
		writers = append(writers, logFileFor(config))
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(io.MultiWriter(writers...))

	if config.Level == "" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Info().Msg("using default log level")
	} else {
		// set custom log level
		level, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			log.Warn().Str("log-level", config.Level).Msg("unknown log level")
		} else {
			zerolog.SetGlobalLevel(level)
		}
	}

	log.Info().
		Bool("console", config.Console).
		Bool("json", config.JSON).
		Str("file", config.File).
		Int("maxage", config.MaxAge).
		Int("maxsize", config.MaxSize).
		Int("maxbackups", config.MaxBackups).
		Msg("logging configured")
}
