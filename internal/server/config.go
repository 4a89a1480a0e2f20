package server

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config struct {
	Bind    string `mapstructure:"bind"`
	SSLCert string `mapstructure:"sslcert"`
	SSLKey  string `mapstructure:"sslkey"`
	Proxy   bool   `mapstructure:"proxy"`
	PProf   bool   `mapstructure:"pprof"`
	Metrics bool   `mapstructure:"metrics"`
}

func (Config) Init(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()

	flags.String("bind", "127.0.0.1:8080", "address to serve playback sessions and manifests on")
	flags.String("sslcert", "", "TLS certificate, terminate TLS at the proxy in production")
	flags.String("sslkey", "", "TLS private key")
	flags.Bool("proxy", false, "trust X-Forwarded-For and X-Real-IP, needed for per client rate limits behind a proxy")
	flags.Bool("pprof", false, "serve pprof at /debug/pprof")
	flags.Bool("metrics", true, "serve prometheus metrics at /metrics")

	for _, name := range []string{"bind", "sslcert", "sslkey", "proxy", "pprof", "metrics"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) Set() {
	if err := viper.Unmarshal(c); err != nil {
		log.Panic().Err(err).Msg("unable to unmarshal server config")
	}
}
